// Package regression estimates deterministic level and trend models, with or
// without autoregressive lags, by ordinary least squares. It serves as a
// benchmark model that can be handed to the diagnostics and the
// initial-value search in place of a full state space model.
package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jcmartinmu/SSM/timeseries"
)

// What kind of deterministic terms to include in the model
type Deterministic int

// Deterministic terms
const (
	DetNone Deterministic = iota
	DetConst
	DetTrend
	DetConstTrend
)

func (d Deterministic) String() string {
	switch d {
	case DetNone:
		return "none"
	case DetConst:
		return "const"
	case DetTrend:
		return "trend"
	case DetConstTrend:
		return "const_trend"
	default:
		return fmt.Sprintf("Deterministic(%d)", int(d))
	}
}

// ParseDeterministic maps "none", "const", "trend" or "const_trend" to a
// Deterministic value.
func ParseDeterministic(s string) (Deterministic, error) {
	for d := DetNone; d <= DetConstTrend; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown deterministic terms %q", s)
}

func (d Deterministic) hasConst() bool { return d == DetConst || d == DetConstTrend }
func (d Deterministic) hasTrend() bool { return d == DetTrend || d == DetConstTrend }

// columns returns the number of deterministic regressors.
func (d Deterministic) columns() int {
	n := 0
	if d.hasConst() {
		n++
	}
	if d.hasTrend() {
		n++
	}
	return n
}

// What kind of model to fit
type ModelSpec struct {
	// How many lags? 0 gives a purely deterministic model.
	Lags int
	// What kind of deterministic terms to include
	Deterministic Deterministic
}

// regressors returns the number of columns of the design matrix for K series.
func (s ModelSpec) regressors(K int) int {
	return s.Deterministic.columns() + s.Lags*K
}

// Estimates holds the coefficients of a fitted model.
type Estimates struct {
	Spec ModelSpec

	// Coefficient matrices for each lag A_1, A_2, etc (each KxK matrix)
	A []*mat.Dense

	// Deterministic terms: constant and/or trend columns (K x detCols)
	C *mat.Dense

	// Covariance of residuals (KxK), divided by the residual degrees of freedom
	SigmaU *mat.SymDense

	// Residuals for rows p..T-1 ((T-p) x K)
	U *mat.Dense
}

// Estimator turns the data we have into model estimates.
type Estimator interface {
	Estimate(ts *timeseries.TimeSeries, spec ModelSpec) (*Estimates, error)
}

// OLSEstimator implements the OLS estimator.
type OLSEstimator struct{}
