package initsearch

import (
	"errors"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrFitFailed wraps whatever the fitting routine returned for one trial.
	ErrFitFailed = errors.New("model fit failed")

	// ErrNoSuccessfulTrial is returned when every trial failed to fit.
	ErrNoSuccessfulTrial = errors.New("no trial produced a finite log-likelihood")

	// ErrInvalidOptions reports unusable search options.
	ErrInvalidOptions = errors.New("invalid search options")
)

// Transform builds a starting hyperparameter vector from a scalar candidate.
type Transform func(candidate float64) []float64

// Repeat returns a Transform that places the candidate in all w positions.
func Repeat(w int) Transform {
	return func(candidate float64) []float64 {
		start := make([]float64, w)
		for i := range start {
			start[i] = candidate
		}
		return start
	}
}

// Options controls one initial-value search.
type Options struct {
	// Number of trials
	MaxLoop int

	// Builds the start vector from a candidate. SearchRepeat and
	// SearchTransform fill it in.
	Transform Transform

	// RNG seed (if 0, time-based seed is used). Ignored when Rand is set.
	Seed int64

	// Random source for candidates; overrides Seed.
	Rand *rand.Rand

	// Number of concurrent fits. 0 or 1 runs the trials one after another,
	// a negative value uses one worker per CPU.
	Workers int

	// Trace output; nil disables logging.
	Logger *zap.Logger
}

// Trial is one sampled start value and the fit it led to.
type Trial struct {
	Index         int       // position in sampling order
	Candidate     float64   // scalar drawn from (0, 2]
	Start         []float64 // hyperparameter vector passed to the fitter
	LogLikelihood float64   // -Inf when the fit failed
	Nobs          int
	Normalized    float64 // LogLikelihood / Nobs, -Inf when the fit failed
	Err           error   // wraps ErrFitFailed
}

// Failed reports whether the fit for this trial did not produce a likelihood.
func (t Trial) Failed() bool { return t.Err != nil }

// failedTrial marks a trial as an external fit failure.
func failedTrial(t Trial, err error) Trial {
	t.LogLikelihood = math.Inf(-1)
	t.Normalized = math.Inf(-1)
	t.Err = err
	return t
}

// Result holds the ranked trial log of one search.
type Result struct {
	// Identifies the run in log output
	RunID uuid.UUID

	// Highest normalized log-likelihood, ties broken by the smaller candidate
	Best Trial

	// All trials, sorted by normalized log-likelihood (descending) and then
	// candidate (ascending). Failed trials come last.
	Trials []Trial
}

// Failures counts the trials whose fit failed.
func (r *Result) Failures() int {
	n := 0
	for _, t := range r.Trials {
		if t.Failed() {
			n++
		}
	}
	return n
}
