// Package logging builds the zap loggers used across the CLI and server.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // "json" or "console"
	OutputPath  string `yaml:"output_path"`
	Development bool   `yaml:"development"`
}

// New builds a logger from cfg. Unknown levels fall back to info.
func New(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.TrimSpace(cfg.Level))
	if err != nil || strings.TrimSpace(cfg.Level) == "" {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	zcfg.Level = level

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "console":
		zcfg.Encoding = "console"
	case "", "json":
		zcfg.Encoding = "json"
	default:
		zcfg.Encoding = "json"
	}

	// CLI output owns stdout; logs go to stderr unless redirected.
	zcfg.OutputPaths = []string{"stderr"}
	if p := strings.TrimSpace(cfg.OutputPath); p != "" {
		zcfg.OutputPaths = []string{p}
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
