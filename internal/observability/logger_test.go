package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: " error ", want: zapcore.ErrorLevel},
		{in: "chatty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() {
		CLILogger = orig
		cliLevel.SetLevel(zapcore.InfoLevel)
	}()

	InitCLILogger("test", false)
	assert.Equal(t, zapcore.InfoLevel, CLILevel())

	InitCLILogger("test", true)
	assert.Equal(t, zapcore.DebugLevel, CLILevel())

	require.NoError(t, SetCLILevel("error"))
	assert.Equal(t, zapcore.ErrorLevel, CLILevel())
	assert.Error(t, SetCLILevel("nope"))
}

func TestNewLogger_WritesConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("beamspotlive", zapcore.InfoLevel, zapcore.AddSync(&buf))

	logger.Debug("hidden")
	logger.Info("resolved", zap.Int64("run_number", 367100))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "beamspotlive")
	assert.Contains(t, out, "resolved")
	assert.Contains(t, out, "367100")
}

func TestNewServerLogger(t *testing.T) {
	logger, err := NewServerLogger("beamspotlive", "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewServerLogger("beamspotlive", "loud")
	assert.Error(t, err)
}
