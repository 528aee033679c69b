// Package model declares what the diagnostics and the initial-value search
// need from a state space fitting library: a fitting routine that starts
// from a hyperparameter vector, and the fitted model it returns.
package model

import (
	"context"
	"fmt"
)

// ResidualKind selects which residuals a fitted model hands out.
type ResidualKind int

const (
	// Raw one-step-ahead prediction errors
	Raw ResidualKind = iota
	// Standardized prediction errors, divided by their standard deviation
	Standardized
)

func (k ResidualKind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Standardized:
		return "standardized"
	default:
		return fmt.Sprintf("ResidualKind(%d)", int(k))
	}
}

// ParseResidualKind maps "raw" or "standardized" to a ResidualKind.
func ParseResidualKind(s string) (ResidualKind, error) {
	switch s {
	case "raw":
		return Raw, nil
	case "standardized", "":
		return Standardized, nil
	}
	return 0, fmt.Errorf("unknown residual kind %q", s)
}

// FittedModel is a model whose hyperparameters have been estimated.
type FittedModel interface {
	// Log-likelihood at the estimated hyperparameters
	LogLikelihood() float64
	// Number of observations the likelihood was computed over
	Nobs() int
	// Estimated hyperparameters
	Params() []float64
	// Residual series of one observed variable (0-based)
	Residuals(kind ResidualKind, series int) ([]float64, error)
}

// Fitter estimates a model's hyperparameters by numerical search starting
// from start. The model, the mapping from hyperparameters to system
// matrices and the optimisation method are owned by the implementation.
type Fitter interface {
	Fit(ctx context.Context, start []float64) (FittedModel, error)
}

// FitterFunc adapts an ordinary function to the Fitter interface.
type FitterFunc func(ctx context.Context, start []float64) (FittedModel, error)

// Fit calls f(ctx, start).
func (f FitterFunc) Fit(ctx context.Context, start []float64) (FittedModel, error) {
	return f(ctx, start)
}
