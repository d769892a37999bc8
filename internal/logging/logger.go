// Package logging builds marcer's zap loggers and hands out per-category
// sub-loggers. Categories can be switched off in the config file.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"marcer/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot  Category = "boot"  // CLI startup, config loading
	CategoryCodec Category = "codec" // MARC decoding and encoding
	CategoryParse Category = "parse" // Instruction parsing
	CategoryExec  Category = "exec"  // Instruction execution
	CategoryWrite Category = "write" // Output files
	CategoryFetch Category = "fetch" // URL fetching
	CategoryStore Category = "store" // SQLite sink
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryBoot, CategoryCodec, CategoryParse, CategoryExec,
	CategoryWrite, CategoryFetch, CategoryStore,
}

var (
	disabledMu sync.RWMutex
	disabled   = map[Category]bool{}
)

// New builds the root logger. debug forces the debug level regardless of
// cfg.Level. The returned level can be raised or lowered later, e.g. when
// an instruction file sets debug.
func New(cfg config.LoggingConfig, debug bool) (*zap.Logger, zap.AtomicLevel, error) {
	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "json":
		zcfg = zap.NewProductionConfig()
		zcfg.Sampling = nil
	default:
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.DisableStacktrace = true
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		lvl = parsed
	}
	if debug {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}

	Configure(cfg)
	return logger, zcfg.Level, nil
}

// Configure records which categories are switched off.
func Configure(cfg config.LoggingConfig) {
	disabledMu.Lock()
	defer disabledMu.Unlock()
	disabled = map[Category]bool{}
	for _, c := range AllCategories {
		if !cfg.IsCategoryEnabled(string(c)) {
			disabled[c] = true
		}
	}
}

// For returns the sub-logger of a category, or a no-op logger when the
// category is disabled or l is nil.
func For(l *zap.Logger, cat Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	disabledMu.RLock()
	off := disabled[cat]
	disabledMu.RUnlock()
	if off {
		return zap.NewNop()
	}
	return l.Named(string(cat))
}
