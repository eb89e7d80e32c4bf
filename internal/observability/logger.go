// Package observability owns the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs so packages can log unconditionally.
var CLILogger = zap.NewNop()

var cliLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// InitCLILogger replaces CLILogger with a console logger on stderr. Verbose
// lowers the level to debug.
func InitCLILogger(serviceName string, verbose bool) {
	if verbose {
		cliLevel.SetLevel(zapcore.DebugLevel)
	} else {
		cliLevel.SetLevel(zapcore.InfoLevel)
	}
	CLILogger = NewLogger(serviceName, cliLevel, zapcore.Lock(os.Stderr))
}

// SetCLILevel changes the CLI logger level at runtime.
func SetCLILevel(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	cliLevel.SetLevel(l)
	return nil
}

// CLILevel returns the current CLI logger level.
func CLILevel() zapcore.Level {
	return cliLevel.Level()
}

// NewLogger builds a console logger writing to w.
func NewLogger(serviceName string, level zapcore.LevelEnabler, w zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), w, level)
	logger := zap.New(core)
	if serviceName != "" {
		logger = logger.Named(serviceName)
	}
	return logger
}

// NewServerLogger builds a JSON logger on stderr for the long-running
// service.
func NewServerLogger(serviceName, level string) (*zap.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.OutputPaths = []string{"stderr"}
	cfg.InitialFields = map[string]any{"service": serviceName}
	return cfg.Build()
}

// ParseLevel accepts zap level names case-insensitively; "" means info.
func ParseLevel(level string) (zapcore.Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
