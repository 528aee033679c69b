package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the log level (debug, info, warn, error) and the
// encoding (console or json). Empty values mean info and console.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewLogger builds the logger described by the "logging" keys of v. Log
// lines go to stderr; stdout carries the reports.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	var lc LoggingConfig
	if err := v.UnmarshalKey("logging", &lc); err != nil {
		return nil, fmt.Errorf("decoding logging config: %w", err)
	}
	core, err := lc.core(zapcore.Lock(os.Stderr))
	if err != nil {
		return nil, err
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// core encodes entries at or above the configured level into out.
func (lc LoggingConfig) core(out zapcore.WriteSyncer) (zapcore.Core, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch lc.Format {
	case "console", "":
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	case "json":
		encoder = zapcore.NewJSONEncoder(enc)
	default:
		return nil, fmt.Errorf("logging.format must be console or json, got %q", lc.Format)
	}
	return zapcore.NewCore(encoder, out, level), nil
}
