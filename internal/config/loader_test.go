package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 20.0, cfg.Server.RateLimit.RequestsPerSecond)
		assert.Equal(t, 40, cfg.Server.RateLimit.Burst)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "userarea", cfg.RunConfig.Type)
		assert.Equal(t, "/fff/BU0/ramdisk", cfg.Live.InputDir)
		assert.Empty(t, cfg.Replay.Files)

		assert.True(t, cfg.Ledger.Enabled)
		assert.Equal(t, DefaultLedgerPath(), cfg.Ledger.Path)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("BEAMSPOTLIVE_PORT", "3000")
		t.Setenv("BEAMSPOTLIVE_LOG_LEVEL", "warn")
		t.Setenv("BEAMSPOTLIVE_LEDGER_ENABLED", "false")
		t.Setenv("BEAMSPOTLIVE_RUN_CONFIG_TYPE", "production")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Ledger.Enabled)
		assert.Equal(t, "production", cfg.RunConfig.Type)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("BEAMSPOTLIVE_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestLoad_SearchPathEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("CMSSWFallback", func(t *testing.T) {
		t.Setenv("BEAMSPOTLIVE_SEARCH_PATH", "")
		t.Setenv("CMSSW_SEARCH_PATH", "/cvmfs/a/src:/cvmfs/b/src")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/cvmfs/a/src:/cvmfs/b/src", cfg.SearchPath)
	})

	t.Run("PrefixedWins", func(t *testing.T) {
		t.Setenv("CMSSW_SEARCH_PATH", "/cvmfs/a/src")
		t.Setenv("BEAMSPOTLIVE_SEARCH_PATH", "/home/me/src")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/home/me/src", cfg.SearchPath)
	})
}

func TestLoad_ListDecoding(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		env  string
		want []string
	}{
		{name: "comma separated", env: "file:/data/a.root, file:/data/b.root", want: []string{"file:/data/a.root", "file:/data/b.root"}},
		{name: "colon separated", env: "/data/a.root:/data/b.root", want: []string{"/data/a.root", "/data/b.root"}},
		{name: "single url", env: "root://eoscms//store/x.root", want: []string{"root://eoscms//store/x.root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BEAMSPOTLIVE_REPLAY_FILES", tt.env)

			cfg, err := Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Replay.Files)
		})
	}
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("BEAMSPOTLIVE_READ_TIMEOUT", "45s")
	t.Setenv("BEAMSPOTLIVE_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "beamspotlive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search_path: /opt/cmssw/src
run_config:
  type: playback
ledger:
  path: `+filepath.Join(dir, "ledger.db")+`
server:
  port: 8181
  rate_limit:
    requests_per_second: 0
`), 0o600))

	cfg, err := LoadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cmssw/src", cfg.SearchPath)
	assert.Equal(t, "playback", cfg.RunConfig.Type)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.Ledger.Path)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Server.RateLimit.RequestsPerSecond)

	t.Run("env beats file", func(t *testing.T) {
		t.Setenv("BEAMSPOTLIVE_PORT", "8282")
		cfg, err := LoadFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 8282, cfg.Server.Port)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadFile(ctx, filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_Invalid(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{name: "bad level", overrides: map[string]any{"logging": map[string]any{"level": "loud"}}},
		{name: "bad run config", overrides: map[string]any{"run_config": map[string]any{"type": "staging"}}},
		{name: "bad port", overrides: map[string]any{"server": map[string]any{"port": 70000}}},
		{name: "negative rate", overrides: map[string]any{"server": map[string]any{"rate_limit": map[string]any{"requests_per_second": -1.0}}}},
		{name: "zero burst", overrides: map[string]any{"server": map[string]any{"rate_limit": map[string]any{"burst": 0}}}},
		{name: "ledger without location", overrides: map[string]any{"ledger": map[string]any{"path": "", "url": ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(ctx, tt.overrides)
			assert.Error(t, err)
		})
	}
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	cfg1, err := Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg1.Server.Port, GetConfig().Server.Port)

	cfg2, err := Load(ctx, map[string]any{"server": map[string]any{"port": cfg1.Server.Port + 1000}})
	require.NoError(t, err)
	assert.Equal(t, cfg2.Server.Port, GetConfig().Server.Port)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := make(map[string]string)
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "BEAMSPOTLIVE_")
		assert.NotEmpty(t, spec.Path)
		names[spec.Name] = spec.Path
	}
	assert.Equal(t, "logging.level", names["BEAMSPOTLIVE_LOG_LEVEL"])
	assert.Equal(t, "server.port", names["BEAMSPOTLIVE_PORT"])
	assert.Equal(t, "search_path", names["BEAMSPOTLIVE_SEARCH_PATH"])
	assert.Equal(t, "ledger.path", names["BEAMSPOTLIVE_LEDGER_PATH"])
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"a": 1,
		"b": map[string]any{"c": "x", "d": map[string]any{"e": true}},
	})
	assert.Equal(t, map[string]any{"a": 1, "b.c": "x", "b.d.e": true}, got)
}
