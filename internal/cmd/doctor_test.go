package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/beamspotlive/internal/config"
	"github.com/3leaps/beamspotlive/internal/observability"
)

func writeStreamerFile(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte("dat"), 0o644))
}

func TestCheckUnitTestData(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/rel/b/DQM/Integration/data", 0o755))

	tests := []struct {
		name       string
		searchPath string
		wantOK     bool
		wantDir    string
		wantDetail string
	}{
		{name: "found in second entry", searchPath: "/rel/a:/rel/b", wantOK: true, wantDir: "/rel/b/DQM/Integration/data"},
		{name: "empty search path", searchPath: "", wantDetail: "search path is empty"},
		{name: "not found", searchPath: "/rel/a", wantDetail: "no entry of /rel/a contains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, res := checkUnitTestData(fs, tt.searchPath)
			assert.Equal(t, tt.wantOK, res.ok)
			assert.Equal(t, tt.wantDir, dir)
			if tt.wantDetail != "" {
				assert.Contains(t, res.detail, tt.wantDetail)
			}
		})
	}
}

func TestCheckStreamerFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeStreamerFile(t, fs, "/ramdisk/run367100/run367100_ls0001_streamDQMOnlineBeamspot_pid01.dat")
	writeStreamerFile(t, fs, "/ramdisk/run367100/run367100_ls0002_streamDQMOnlineBeamspot_pid01.dat")
	writeStreamerFile(t, fs, "/ramdisk/run367100/run367100_ls0001_streamDQM_pid01.dat")
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	t.Run("counts beam-spot stream files", func(t *testing.T) {
		res := checkStreamerFiles(fs, "live streamer files", "/ramdisk")
		assert.True(t, res.ok)
		assert.Contains(t, res.detail, "2 file(s)")
	})

	t.Run("empty directory", func(t *testing.T) {
		res := checkStreamerFiles(fs, "live streamer files", "/empty")
		assert.False(t, res.ok)
		assert.Contains(t, res.detail, "no streamDQMOnlineBeamspot files")
	})

	t.Run("missing directory", func(t *testing.T) {
		res := checkStreamerFiles(fs, "live streamer files", "/nowhere")
		assert.False(t, res.ok)
		assert.Contains(t, res.detail, "not found")
	})
}

func TestCheckLedger(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		res := checkLedger(context.Background(), &config.Config{})
		assert.True(t, res.ok)
		assert.Equal(t, "disabled", res.detail)
	})

	t.Run("creates the ledger file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ledger.db")
		cfg := &config.Config{Ledger: config.LedgerConfig{Enabled: true, Path: path}}

		res := checkLedger(context.Background(), cfg)
		assert.True(t, res.ok, res.detail)
		assert.Equal(t, path, res.detail)
		assert.FileExists(t, path)
	})
}

func TestRunSiteChecks(t *testing.T) {
	observability.InitCLILogger("test", false)

	fs := afero.NewMemMapFs()
	writeStreamerFile(t, fs, "/rel/DQM/Integration/data/run346373/run346373_ls0001_streamDQMOnlineBeamspot_pid01.dat")

	cfg := &config.Config{
		SearchPath: "/rel",
		Live:       config.LiveConfig{InputDir: "/fff/BU0/ramdisk"},
	}

	results := runSiteChecks(context.Background(), fs, cfg)
	require.Len(t, results, 4)

	assert.True(t, results[0].ok, "unit-test data directory")
	assert.True(t, results[1].ok, "unit-test streamer files")
	assert.False(t, results[2].ok, "live input dir is absent")
	assert.True(t, results[3].ok, "ledger disabled")

	assert.NotPanics(t, func() {
		for i, r := range results {
			r.log(i+1, len(results))
		}
	})
}

func TestCheckGoVersion(t *testing.T) {
	tests := []struct {
		version string
		wantOK  bool
	}{
		{version: "go1.25.1", wantOK: true},
		{version: "go1.23", wantOK: true},
		{version: "go1.21.5", wantOK: false},
		{version: "go1.9", wantOK: false},
		{version: "go1.100", wantOK: true},
		{version: "devel go1.26-abcdef", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			res := checkGoVersion(tt.version)
			assert.Equal(t, tt.wantOK, res.ok)
			assert.Contains(t, res.detail, tt.version)
		})
	}
}

func TestCheckModuleVersion(t *testing.T) {
	res := checkModuleVersion("Gofulmen", "0.2.1")
	assert.True(t, res.ok)
	assert.Equal(t, "v0.2.1", res.detail)

	res = checkModuleVersion("Crucible", "")
	assert.False(t, res.ok)
	assert.Equal(t, "cannot access Crucible", res.detail)
}
