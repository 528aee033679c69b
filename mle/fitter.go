// Package mle estimates hyperparameters by maximising a log-likelihood with
// gonum's optimize package. Parameters are searched on the log scale so
// that variances stay positive.
package mle

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/jcmartinmu/SSM/model"
)

var (
	// ErrBadStart reports a start vector that cannot be used.
	ErrBadStart = errors.New("bad start vector")

	// ErrNotConverged reports an optimizer run that ended early.
	ErrNotConverged = errors.New("optimizer did not converge")

	// ErrNonFinite reports a likelihood that is NaN or infinite at the optimum.
	ErrNonFinite = errors.New("log-likelihood is not finite")
)

// Objective is a model whose log-likelihood depends on a vector of strictly
// positive hyperparameters.
type Objective interface {
	// Number of hyperparameters
	Dim() int
	// Number of observations the likelihood is computed over
	Nobs() int
	// Log-likelihood at params. Must be safe for concurrent use.
	LogLikelihood(params []float64) (float64, error)
	// Fitted model at the estimated params
	Fitted(params []float64, loglik float64) model.FittedModel
}

// Method selects the optimisation algorithm.
type Method int

const (
	NelderMead Method = iota
	BFGS
)

func (m Method) String() string {
	switch m {
	case NelderMead:
		return "nelder-mead"
	case BFGS:
		return "bfgs"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps "nelder-mead" or "bfgs" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "nelder-mead", "neldermead", "":
		return NelderMead, nil
	case "bfgs":
		return BFGS, nil
	}
	return 0, fmt.Errorf("unknown optimisation method %q", s)
}

// Fitter implements model.Fitter for an Objective.
type Fitter struct {
	Objective Objective
	Method    Method

	// Maximum number of major iterations (0 means no limit)
	MaxIterations int

	// Maximum number of likelihood evaluations (0 means no limit)
	MaxEvaluations int

	// Trace output; nil disables logging.
	Logger *zap.Logger
}

var _ model.Fitter = (*Fitter)(nil)

// Fit maximises the log-likelihood starting from start, whose entries must
// be positive and finite. A cancelled ctx stops the optimizer at the next
// evaluation.
func (f *Fitter) Fit(ctx context.Context, start []float64) (model.FittedModel, error) {
	if f.Objective == nil {
		return nil, fmt.Errorf("no objective")
	}
	dim := f.Objective.Dim()
	if len(start) != dim {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrBadStart, dim, len(start))
	}

	x0 := make([]float64, dim)
	for i, v := range start {
		if !(v > 0) || math.IsInf(v, 1) {
			return nil, fmt.Errorf("%w: value %d must be positive and finite, got %v", ErrBadStart, i, v)
		}
		x0[i] = math.Log(v)
	}

	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Minimise -loglik over x = log(params)
	negLogLik := func(x []float64) float64 {
		params := make([]float64, len(x))
		for i, xi := range x {
			params[i] = math.Exp(xi)
		}
		ll, err := f.Objective.LogLikelihood(params)
		if err != nil || math.IsNaN(ll) {
			return math.Inf(1)
		}
		return -ll
	}

	problem := optimize.Problem{Func: negLogLik}
	var method optimize.Method
	switch f.Method {
	case NelderMead:
		method = &optimize.NelderMead{}
	case BFGS:
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, negLogLik, x, &fd.Settings{Formula: fd.Central})
		}
		method = &optimize.BFGS{}
	default:
		return nil, fmt.Errorf("unknown optimisation method %v", f.Method)
	}

	settings := &optimize.Settings{
		MajorIterations: f.MaxIterations,
		FuncEvaluations: f.MaxEvaluations,
		Recorder:        contextRecorder{ctx},
	}
	if f.Method == BFGS {
		settings.GradientThreshold = 1e-4
	}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConverged, err)
	}
	if statusErr := result.Status.Err(); statusErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotConverged, result.Status, statusErr)
	}

	params := make([]float64, dim)
	for i, xi := range result.X {
		params[i] = math.Exp(xi)
	}
	ll, err := f.Objective.LogLikelihood(params)
	if err != nil {
		return nil, fmt.Errorf("log-likelihood at optimum: %w", err)
	}
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return nil, fmt.Errorf("%w: %v at %v", ErrNonFinite, ll, params)
	}

	logger.Debug("maximum likelihood fit",
		zap.String("method", f.Method.String()),
		zap.Float64s("start", start),
		zap.Float64s("params", params),
		zap.Float64("loglik", ll),
		zap.Stringer("status", result.Status),
		zap.Int("iterations", result.Stats.MajorIterations),
		zap.Int("evaluations", result.Stats.FuncEvaluations),
	)

	return f.Objective.Fitted(params, ll), nil
}

// contextRecorder stops the optimizer once its context is done.
type contextRecorder struct {
	ctx context.Context
}

func (r contextRecorder) Init() error { return r.ctx.Err() }

func (r contextRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
