// Package logging provides category-based logging for chipster, backed by zap.
// Each subsystem logs to its own category; categories can be disabled
// individually, and the whole system is a no-op unless debug mode is on.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and configuration
	CategoryPipeline  Category = "pipeline"  // Engine stage dispatch, routing, retries
	CategoryGenerate  Category = "generate"  // LLM API calls
	CategoryDecompose Category = "decompose" // Monolith splitting, testbench generation
	CategorySimulate  Category = "simulate"  // iverilog/vvp invocations
	CategoryStore     Category = "store"     // Artifact export and run archive
	CategoryRetrieval Category = "retrieval" // Local corpus lookups
)

// Config controls log output. Mirrors config.LoggingConfig to avoid a
// circular import with the config package.
type Config struct {
	DebugMode  bool
	Directory  string
	Level      string
	Console    bool
	Categories map[string]bool
}

var (
	mu      sync.RWMutex
	cfg     Config
	loggers = make(map[Category]*zap.SugaredLogger)
	nop     = zap.NewNop().Sugar()
)

// Initialize configures the logging system. Must be called once at startup;
// before that, all loggers are no-ops.
func Initialize(c Config) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	loggers = make(map[Category]*zap.SugaredLogger)

	if !cfg.DebugMode {
		return nil
	}
	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return nil
}

// Get returns the logger for a category. Disabled categories get a no-op
// logger, so call sites never need to guard.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if lg, ok := loggers[cat]; ok {
		mu.RUnlock()
		return lg
	}
	enabled := categoryEnabled(cat)
	mu.RUnlock()

	if !enabled {
		return nop
	}

	mu.Lock()
	defer mu.Unlock()
	if lg, ok := loggers[cat]; ok {
		return lg
	}
	lg, err := build(cat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open log for %s: %v\n", cat, err)
		lg = nop
	}
	loggers[cat] = lg
	return lg
}

func categoryEnabled(cat Category) bool {
	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, ok := cfg.Categories[string(cat)]
	if !ok {
		return true
	}
	return enabled
}

func build(cat Category) (*zap.SugaredLogger, error) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	level := parseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.Directory != "" {
		path := filepath.Join(cfg.Directory, string(cat)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), level))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), level))
	}
	if len(cores) == 0 {
		return nop, nil
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core).Named(string(cat)).Sugar(), nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
