package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/jcmartinmu/SSM/diagnostics"
	"github.com/jcmartinmu/SSM/initsearch"
	"github.com/jcmartinmu/SSM/internal/config"
	"github.com/jcmartinmu/SSM/mle"
	"github.com/jcmartinmu/SSM/model"
	"github.com/jcmartinmu/SSM/regression"
	"github.com/jcmartinmu/SSM/timeseries"
)

// loadModel reads the configured series and estimates the benchmark model.
func loadModel(cfg *config.Config) (*regression.Model, error) {
	if cfg.Data.Path == "" {
		return nil, fmt.Errorf("no data file: set data.path or pass -data")
	}
	ts, err := timeseries.LoadCSV(cfg.Data.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Data.Column != "" {
		ts, err = ts.Select(cfg.Data.Column)
		if err != nil {
			return nil, err
		}
	}

	det, err := regression.ParseDeterministic(cfg.Model.Deterministic)
	if err != nil {
		return nil, err
	}
	return regression.NewModel(ts, regression.ModelSpec{
		Lags:          cfg.Model.Lags,
		Deterministic: det,
	})
}

// searchStart loads the model and runs the initial value search on it.
func searchStart(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*regression.Model, *mle.Fitter, *initsearch.Result, error) {
	m, err := loadModel(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	method, err := mle.ParseMethod(cfg.Search.Method)
	if err != nil {
		return nil, nil, nil, err
	}
	fitter := &mle.Fitter{Objective: m, Method: method, Logger: logger}

	logger.Info("searching initial values",
		zap.Strings("series", m.SeriesNames()),
		zap.Int("hyperparameters", m.Dim()),
		zap.Int("max_loop", cfg.Search.MaxLoop),
		zap.Int("workers", cfg.Search.Workers),
	)

	res, err := initsearch.SearchRepeat(ctx, fitter, m.Dim(), initsearch.Options{
		MaxLoop: cfg.Search.MaxLoop,
		Seed:    cfg.Search.Seed,
		Workers: cfg.Search.Workers,
		Logger:  logger,
	})
	if res != nil && cfg.Search.Output != "" {
		if werr := writeTrialCSV(cfg.Search.Output, res); werr != nil {
			return nil, nil, nil, werr
		}
		logger.Info("trial log written", zap.String("path", cfg.Search.Output))
	}
	return m, fitter, res, err
}

// writeTrialCSV saves the trial log of res to path.
func writeTrialCSV(path string, res *initsearch.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// runSearch prints the ranked trial log.
func runSearch(ctx context.Context, cfg *config.Config, logger *zap.Logger, w io.Writer) error {
	_, _, res, err := searchStart(ctx, cfg, logger)
	if res != nil {
		if werr := res.WriteTrials(w); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	return res.WriteSummary(w)
}

// runDiagnose fits the model from the best start value and prints one
// diagnostic report per series.
func runDiagnose(ctx context.Context, cfg *config.Config, logger *zap.Logger, w io.Writer) error {
	m, fitter, res, err := searchStart(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fitted, err := fitter.Fit(ctx, res.Best.Start)
	if err != nil {
		return fmt.Errorf("fit from best start %v: %w", res.Best.Start, err)
	}

	kind, err := model.ParseResidualKind(cfg.Model.Residuals)
	if err != nil {
		return err
	}

	names := m.SeriesNames()
	for k, name := range names {
		resid, err := fitted.Residuals(kind, k)
		if err != nil {
			return err
		}

		p := diagnostics.Params{
			K: cfg.Diagnostics.K,
			W: cfg.Diagnostics.W,
			D: cfg.Diagnostics.D,
			L: cfg.Diagnostics.L,
		}
		if p.W == 0 {
			p.W = m.Dim()
		}
		if p.L == 0 {
			p.L = diagnostics.MaxACFLag(len(resid) - p.D)
		}

		title := cfg.Diagnostics.Title
		if len(names) > 1 {
			title = fmt.Sprintf("%s: %s", title, name)
		}

		rep, err := diagnostics.Run(title, resid, p)
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		if _, err := rep.WriteTo(w); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}

		if !rep.AllPassed() {
			logger.Warn("residual assumptions violated", zap.String("series", name))
		}
	}

	logger.Info("diagnostics finished",
		zap.Float64s("params", fitted.Params()),
		zap.Float64("loglik", fitted.LogLikelihood()),
		zap.String("residuals", kind.String()),
	)
	return nil
}
