// Command ssm fits a benchmark model to a series and checks its residuals.
//
//	ssm search   -config ssm.yaml    rank random start values by log-likelihood
//	ssm diagnose -config ssm.yaml    fit from the best start value and print
//	                                 the Q, r, H and N residual tests
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jcmartinmu/SSM/internal/config"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ssm <search|diagnose> [-config file] [-data file.csv] [-column name] [-out trials.csv]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]
	if command != "search" && command != "diagnose" {
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	dataPath := fs.String("data", "", "CSV file with the observed series (overrides data.path)")
	column := fs.String("column", "", "series to analyse (overrides data.column)")
	out := fs.String("out", "", "CSV file for the search trial log (overrides search.output)")
	_ = fs.Parse(os.Args[2:])

	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		v.Set("data.path", *dataPath)
	}
	if *column != "" {
		v.Set("data.column", *column)
	}
	if *out != "" {
		v.Set("search.output", *out)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(v)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "search":
		err = runSearch(ctx, cfg, logger, os.Stdout)
	case "diagnose":
		err = runDiagnose(ctx, cfg, logger, os.Stdout)
	}
	if err != nil {
		logger.Error(command+" failed", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}
