package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/jcmartinmu/SSM/model"
	"github.com/jcmartinmu/SSM/timeseries"
)

// Model is an estimated regression whose disturbance variances, one per
// series, are the hyperparameters left to maximum likelihood. The
// coefficients are fixed at their OLS values.
type Model struct {
	est   *Estimates
	names []string
	// residual sum of squares per series
	ss []float64
}

// NewModel estimates spec on ts by OLS.
func NewModel(ts *timeseries.TimeSeries, spec ModelSpec) (*Model, error) {
	est, err := (&OLSEstimator{}).Estimate(ts, spec)
	if err != nil {
		return nil, err
	}

	_, K := est.U.Dims()
	ss := make([]float64, K)
	for k := range ss {
		u := mat.Col(nil, k, est.U)
		ss[k] = floats.Dot(u, u)
	}

	return &Model{est: est, names: ts.VarNames, ss: ss}, nil
}

// Estimates returns the OLS estimates behind the model.
func (m *Model) Estimates() *Estimates { return m.est }

// SeriesNames returns the names of the modelled series.
func (m *Model) SeriesNames() []string { return append([]string(nil), m.names...) }

// Dim returns the number of hyperparameters, one variance per series.
func (m *Model) Dim() int { return len(m.ss) }

// Nobs returns the number of observations entering the likelihood.
func (m *Model) Nobs() int {
	n, K := m.est.U.Dims()
	return n * K
}

// LogLikelihood evaluates the Gaussian log-likelihood of the residuals with
// variance params[k] for series k.
func (m *Model) LogLikelihood(params []float64) (float64, error) {
	if len(params) != len(m.ss) {
		return 0, fmt.Errorf("expected %d variances, got %d", len(m.ss), len(params))
	}

	n, _ := m.est.U.Dims()
	N := float64(n)

	ll := 0.0
	for k, s2 := range params {
		if !(s2 > 0) || math.IsInf(s2, 1) {
			return 0, fmt.Errorf("variance %d must be positive and finite, got %v", k, s2)
		}
		ll += -0.5*N*(math.Log(2*math.Pi)+math.Log(s2)) - 0.5*m.ss[k]/s2
	}
	return ll, nil
}

// MaxLikelihoodVariances returns the closed-form ML variances SS_k / n.
func (m *Model) MaxLikelihoodVariances() []float64 {
	n, _ := m.est.U.Dims()
	out := make([]float64, len(m.ss))
	for k, s := range m.ss {
		out[k] = s / float64(n)
	}
	return out
}

// Fitted attaches estimated variances and their log-likelihood to the model.
func (m *Model) Fitted(params []float64, loglik float64) model.FittedModel {
	return &Fitted{
		model:  m,
		params: append([]float64(nil), params...),
		loglik: loglik,
	}
}

// Fitted is a Model with estimated variances.
type Fitted struct {
	model  *Model
	params []float64
	loglik float64
}

func (f *Fitted) LogLikelihood() float64 { return f.loglik }
func (f *Fitted) Nobs() int              { return f.model.Nobs() }
func (f *Fitted) Params() []float64      { return append([]float64(nil), f.params...) }

// Estimates returns the OLS estimates behind the fit.
func (f *Fitted) Estimates() *Estimates { return f.model.est }

// Residuals returns the residuals of one series. Standardized residuals are
// divided by the square root of that series' estimated variance.
func (f *Fitted) Residuals(kind model.ResidualKind, series int) ([]float64, error) {
	_, K := f.model.est.U.Dims()
	if series < 0 || series >= K {
		return nil, fmt.Errorf("series %d out of range [0, %d)", series, K)
	}

	u := mat.Col(nil, series, f.model.est.U)
	switch kind {
	case model.Raw:
		return u, nil
	case model.Standardized:
		floats.Scale(1/math.Sqrt(f.params[series]), u)
		return u, nil
	default:
		return nil, fmt.Errorf("unsupported residual kind %v", kind)
	}
}

// SeriesIndex returns the column of the named series, or an error.
func (f *Fitted) SeriesIndex(name string) (int, error) {
	for i, v := range f.model.names {
		if v == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown series %q", name)
}
