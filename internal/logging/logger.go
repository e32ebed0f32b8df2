// Package logging builds the zap loggers used across editguard.
// Components receive a *zap.Logger in their constructors; there is no
// global logger state. Per-category toggles come from the logging config.
package logging

import (
	"fmt"
	"strings"

	"editguard/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // CLI startup, config loading
	CategoryCompiler  Category = "compiler"  // Constraint compilation
	CategoryValidate  Category = "validate"  // Pre/post checks
	CategoryEvents    Category = "events"    // Event channel, circuit breaker
	CategoryRouter    Category = "router"    // Backend selection and dispatch
	CategoryBackend   Category = "backend"   // Backend implementations
	CategoryMode      Category = "mode"      // Mode registry
	CategoryIntake    Category = "intake"    // Request parsing and rejection
	CategoryStore     Category = "store"     // SQLite persistence
	CategoryProcessor Category = "processor" // End-to-end pipeline
	CategoryAudit     Category = "audit"     // Pipeline audit trail
)

// Options selects level, encoding and destination.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	File       string // empty = stderr
	Categories map[string]bool
}

// FromConfig converts the logging section of the config.
func FromConfig(c config.LoggingConfig) Options {
	return Options{Level: c.Level, Format: c.Format, File: c.File, Categories: c.Categories}
}

// New builds a logger. JSON format uses zap's production encoder, anything
// else the development console encoder.
func New(opts Options) (*zap.Logger, error) {
	var zc zap.Config
	if opts.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if opts.File != "" {
		zc.OutputPaths = []string{opts.File}
		zc.ErrorOutputPaths = []string{opts.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return WithCategories(logger, opts.Categories), nil
}

// For returns base named after the category. A nil base yields a no-op logger.
func For(base *zap.Logger, category Category) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(string(category))
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithCategories drops entries from loggers whose category is switched off.
// The category is the first segment of the logger name. Unlisted
// categories stay enabled.
func WithCategories(l *zap.Logger, categories map[string]bool) *zap.Logger {
	disabled := make(map[string]bool)
	for name, enabled := range categories {
		if !enabled {
			disabled[name] = true
		}
	}
	if l == nil || len(disabled) == 0 {
		return OrNop(l)
	}
	return l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &categoryCore{Core: c, disabled: disabled}
	}))
}

type categoryCore struct {
	zapcore.Core
	disabled map[string]bool
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{Core: c.Core.With(fields), disabled: c.disabled}
}

func (c *categoryCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	root, _, _ := strings.Cut(e.LoggerName, ".")
	if c.disabled[root] {
		return ce
	}
	return c.Core.Check(e, ce)
}
