// Package config loads beamspotlive settings.
//
// Precedence, highest first: runtime overrides, environment
// (BEAMSPOTLIVE_*, plus CMSSW_SEARCH_PATH for the search path), the
// beamspotlive.yaml config file, defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/beamspotlive/internal/observability"
)

// Application identity used for env prefix and file names.
const (
	AppName   = "beamspotlive"
	EnvPrefix = "BEAMSPOTLIVE"
)

// Config is the resolved application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`

	// SearchPath is the colon-separated software search path the unit-test
	// data directory is looked up in.
	SearchPath string `mapstructure:"search_path"`

	Live      LiveConfig      `mapstructure:"live"`
	Replay    ReplayConfig    `mapstructure:"replay"`
	RunConfig RunConfigConfig `mapstructure:"run_config"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type LiveConfig struct {
	// InputDir is the ramdisk the live streamer files are read from.
	InputDir string `mapstructure:"input_dir"`
}

type ReplayConfig struct {
	Files []string `mapstructure:"files"`
}

type RunConfigConfig struct {
	// Type is the DQM run-config type: production, playback or userarea.
	Type string `mapstructure:"type"`
}

type LedgerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	// RequestsPerSecond of zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

var validRunConfigTypes = map[string]bool{"production": true, "playback": true, "userarea": true}

// EnvSpec maps an environment variable to a config key.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load resolves the configuration, searching for beamspotlive.yaml in the
// working directory and the user config directory.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an explicit config file. A missing explicit file is
// an error; a missing discovered file is not.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		for _, dir := range getUserConfigPaths() {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		names := []string{spec.Name}
		if spec.Path == "search_path" {
			names = append(names, "CMSSW_SEARCH_PATH")
		}
		if err := v.BindEnv(append([]string{spec.Path}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, value := range flatten("", o) {
			v.Set(key, value)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToListHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if !validRunConfigTypes[c.RunConfig.Type] {
		problems = append(problems, fmt.Sprintf("run_config.type %q must be one of production, playback, userarea", c.RunConfig.Type))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		problems = append(problems, "server.rate_limit.requests_per_second must be >= 0")
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst < 1 {
		problems = append(problems, "server.rate_limit.burst must be >= 1 when limiting is enabled")
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Path) == "" && strings.TrimSpace(c.Ledger.URL) == "" {
		problems = append(problems, "ledger.path or ledger.url is required when the ledger is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DefaultLedgerPath is the ledger location under the user data directory.
func DefaultLedgerPath() string {
	return filepath.Join(gfconfig.GetAppDataDir(AppName), "ledger", AppName+"-ledger.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("search_path", "")
	v.SetDefault("live.input_dir", "/fff/BU0/ramdisk")
	v.SetDefault("replay.files", []string{})
	v.SetDefault("run_config.type", "userarea")

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", DefaultLedgerPath())
	v.SetDefault("ledger.url", "")
	v.SetDefault("ledger.auth_token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests_per_second", 20.0)
	v.SetDefault("server.rate_limit.burst", 40)
}

// getEnvSpecs lists the short environment names. Every other key is still
// reachable through the automatic BEAMSPOTLIVE_<KEY_WITH_UNDERSCORES> form.
func getEnvSpecs() []EnvSpec {
	short := map[string]string{
		"LOG_LEVEL":         "logging.level",
		"SEARCH_PATH":       "search_path",
		"LIVE_INPUT_DIR":    "live.input_dir",
		"REPLAY_FILES":      "replay.files",
		"RUN_CONFIG_TYPE":   "run_config.type",
		"LEDGER_ENABLED":    "ledger.enabled",
		"LEDGER_PATH":       "ledger.path",
		"LEDGER_URL":        "ledger.url",
		"LEDGER_AUTH_TOKEN": "ledger.auth_token",
		"HOST":              "server.host",
		"PORT":              "server.port",
		"READ_TIMEOUT":      "server.read_timeout",
		"WRITE_TIMEOUT":     "server.write_timeout",
		"IDLE_TIMEOUT":      "server.idle_timeout",
		"SHUTDOWN_TIMEOUT":  "server.shutdown_timeout",
		"RATE_LIMIT_RPS":    "server.rate_limit.requests_per_second",
		"RATE_LIMIT_BURST":  "server.rate_limit.burst",
	}
	specs := make([]EnvSpec, 0, len(short))
	for name, path := range short {
		specs = append(specs, EnvSpec{Name: EnvPrefix + "_" + name, Path: path})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func getUserConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName))
	}
	return paths
}

// stringToListHook splits strings into []string on commas, or on colons
// when no comma is present (search-path style).
func stringToListHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return []string{}, nil
		}
		sep := ","
		if !strings.Contains(s, ",") {
			sep = ":"
			if strings.Contains(s, "://") || strings.HasPrefix(s, "file:") {
				sep = ","
			}
		}
		var out []string
		for _, part := range strings.Split(s, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
