// Package initsearch looks for a good starting value for hyperparameter
// estimation by fitting a model from many random scalar start values and
// keeping the one with the highest log-likelihood per observation.
package initsearch

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jcmartinmu/SSM/model"
)

// SearchRepeat runs Search with every start vector holding the candidate
// in all w positions.
func SearchRepeat(ctx context.Context, fitter model.Fitter, w int, opts Options) (*Result, error) {
	if w < 1 {
		return nil, fmt.Errorf("%w: w must be >= 1, got %d", ErrInvalidOptions, w)
	}
	opts.Transform = Repeat(w)
	return Search(ctx, fitter, opts)
}

// SearchTransform runs Search with start vectors built by tr.
func SearchTransform(ctx context.Context, fitter model.Fitter, tr Transform, opts Options) (*Result, error) {
	opts.Transform = tr
	return Search(ctx, fitter, opts)
}

// Search draws opts.MaxLoop candidates uniformly from (0, 2], fits the model
// from opts.Transform(candidate) for each of them and ranks the trials by
// normalized log-likelihood.
// A failing fit is recorded in its trial and the search goes on. If no trial
// succeeds the ranked log is returned together with ErrNoSuccessfulTrial.
// Cancelling ctx stops the search and returns ctx.Err().
func Search(ctx context.Context, fitter model.Fitter, opts Options) (*Result, error) {
	if fitter == nil {
		return nil, fmt.Errorf("%w: fitter is nil", ErrInvalidOptions)
	}
	if opts.MaxLoop < 1 {
		return nil, fmt.Errorf("%w: MaxLoop must be >= 1, got %d", ErrInvalidOptions, opts.MaxLoop)
	}
	if opts.Transform == nil {
		return nil, fmt.Errorf("%w: no transform for the start vector", ErrInvalidOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.New()
	logger = logger.With(zap.String("run_id", runID.String()))

	rng := opts.Rand
	if rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	// Candidates are drawn up front so the outcome does not depend on the
	// number of workers. Start vectors are built inside each trial.
	trials := make([]Trial, opts.MaxLoop)
	for i := range trials {
		trials[i] = Trial{
			Index:     i,
			Candidate: 2 * (1 - rng.Float64()), // (0, 2]
		}
	}

	numWorkers := opts.Workers
	if numWorkers < 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > opts.MaxLoop {
		numWorkers = opts.MaxLoop
	}

	var err error
	if numWorkers <= 1 {
		err = runSequential(ctx, fitter, opts.Transform, trials)
	} else {
		err = runParallel(ctx, fitter, opts.Transform, trials, numWorkers)
	}
	if err != nil {
		logger.Warn("initial value search cancelled", zap.Error(err))
		return nil, err
	}

	// Trace in sampling order
	for _, t := range trials {
		logger.Debug("trial",
			zap.Int("index", t.Index),
			zap.Float64("candidate", t.Candidate),
			zap.Float64s("start", t.Start),
			zap.Float64("loglik_per_obs", t.Normalized),
			zap.Error(t.Err),
		)
	}

	rank(trials)

	res := &Result{RunID: runID, Trials: trials, Best: trials[0]}
	if res.Best.Failed() {
		logger.Error("initial value search failed", zap.Int("trials", len(trials)))
		return res, fmt.Errorf("%w: all %d trials failed, first error: %v", ErrNoSuccessfulTrial, len(trials), res.Best.Err)
	}

	logger.Info("initial value search finished",
		zap.Int("trials", len(trials)),
		zap.Int("failures", res.Failures()),
		zap.Float64("best_candidate", res.Best.Candidate),
		zap.Float64("best_loglik_per_obs", res.Best.Normalized),
	)

	return res, nil
}

// runSequential fits the trials one after another.
func runSequential(ctx context.Context, fitter model.Fitter, tr Transform, trials []Trial) error {
	for i := range trials {
		if err := ctx.Err(); err != nil {
			return err
		}
		trials[i] = runTrial(ctx, fitter, tr, trials[i])
	}
	return ctx.Err()
}

// runParallel fits the trials on a pool of numWorkers goroutines.
func runParallel(ctx context.Context, fitter model.Fitter, tr Transform, trials []Trial, numWorkers int) error {
	jobs := make(chan int)
	resultsCh := make(chan Trial, len(trials))

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			resultsCh <- runTrial(ctx, fitter, tr, trials[i])
		}
	}

	// Start workers
	for w := 0; w < numWorkers; w++ {
		go worker()
	}

	// Feed jobs until done or cancelled
	go func() {
		defer close(jobs)
		for i := range trials {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(resultsCh)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Results arrive out of order, put them back by index
	for t := range resultsCh {
		trials[t.Index] = t
	}
	return nil
}

// runTrial builds the start vector of one trial and fits it. Any failure,
// including a panic inside the transform or the fitting routine, becomes a
// failed trial.
func runTrial(ctx context.Context, fitter model.Fitter, tr Transform, t Trial) (out Trial) {
	defer func() {
		if r := recover(); r != nil {
			out = failedTrial(t, fmt.Errorf("%w: panic: %v", ErrFitFailed, r))
		}
	}()

	t.Start = tr(t.Candidate)
	if len(t.Start) == 0 {
		return failedTrial(t, fmt.Errorf("%w: empty start vector for candidate %v", ErrFitFailed, t.Candidate))
	}

	start := make([]float64, len(t.Start))
	copy(start, t.Start)

	fitted, err := fitter.Fit(ctx, start)
	if err != nil {
		return failedTrial(t, fmt.Errorf("%w: %w", ErrFitFailed, err))
	}
	if fitted == nil {
		return failedTrial(t, fmt.Errorf("%w: fitter returned no model", ErrFitFailed))
	}

	nobs := fitted.Nobs()
	if nobs <= 0 {
		return failedTrial(t, fmt.Errorf("%w: fitted model reports %d observations", ErrFitFailed, nobs))
	}
	ll := fitted.LogLikelihood()
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return failedTrial(t, fmt.Errorf("%w: log-likelihood is %v", ErrFitFailed, ll))
	}

	t.LogLikelihood = ll
	t.Nobs = nobs
	t.Normalized = ll / float64(nobs)
	return t
}

// rank orders trials by normalized log-likelihood, highest first, then by
// candidate value, smallest first.
func rank(trials []Trial) {
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if a.Normalized != b.Normalized {
			return a.Normalized > b.Normalized
		}
		return a.Candidate < b.Candidate
	})
}
