package selector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/3leaps/beamspotlive/pkg/runtype"
)

// Inputs are the external facts the job configuration is resolved from.
type Inputs struct {
	UnitTest bool `json:"unit_test" yaml:"unit_test"`
	Live     bool `json:"live" yaml:"live"`

	// Playback reports whether the job runs on a playback system.
	Playback bool `json:"playback" yaml:"playback"`

	RunType      runtype.RunType `json:"run_type" yaml:"run_type"`
	RunNumber    int64           `json:"run_number" yaml:"run_number"`
	RunUniqueKey string          `json:"run_unique_key" yaml:"run_unique_key"`

	// RunConfigType is the DQM run-config type ("production", "playback",
	// "userarea").
	RunConfigType string `json:"run_config_type" yaml:"run_config_type"`

	SearchPath   string   `json:"search_path,omitempty" yaml:"search_path,omitempty"`
	LiveInputDir string   `json:"live_input_dir,omitempty" yaml:"live_input_dir,omitempty"`
	ReplayFiles  []string `json:"replay_files,omitempty" yaml:"replay_files,omitempty"`
}

// Bundle is the resolved, immutable job configuration.
type Bundle struct {
	Mode          JobMode         `json:"mode" yaml:"mode"`
	RunType       runtype.RunType `json:"run_type" yaml:"run_type"`
	RunNumber     int64           `json:"run_number" yaml:"run_number"`
	RunConfigType string          `json:"run_config_type" yaml:"run_config_type"`

	Source       InputSource `json:"source" yaml:"source"`
	RawDataLabel string      `json:"raw_data_label" yaml:"raw_data_label"`

	// BeamFit is false for run types without beam-spot monitoring; the
	// collections and destination are then absent.
	BeamFit     bool               `json:"beam_fit" yaml:"beam_fit"`
	Collections *CollectionNames   `json:"collections,omitempty" yaml:"collections,omitempty"`
	Destination *OutputDestination `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Option customizes Resolve.
type Option func(*resolveOptions)

type resolveOptions struct {
	logger *zap.Logger
	fs     afero.Fs
}

// WithLogger sets the logger used to report resolution decisions.
func WithLogger(l *zap.Logger) Option {
	return func(o *resolveOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFs sets the filesystem scanned for the unit-test data directory.
func WithFs(fs afero.Fs) Option {
	return func(o *resolveOptions) {
		o.fs = fs
	}
}

// Resolve runs the full resolution: job mode, input source, raw-data label,
// then (for beam-fit run types) collections and upload destination.
//
// Run types without a beam-fit path resolve successfully with BeamFit false.
func Resolve(in Inputs, opts ...Option) (*Bundle, error) {
	o := resolveOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	if in.UnitTest && in.Live {
		log.Debug("Unit-test flag overrides live flag")
	}
	mode := ResolveJobMode(in.UnitTest, in.Live && !in.UnitTest)
	if in.Playback && mode == UnitTest {
		log.Info("Playback system flag ignored in unit-test mode")
	}
	mode, err := ApplyPlayback(mode, in.Playback)
	if err != nil {
		return nil, err
	}

	source, err := ResolveInputSource(mode, SourceEnv{
		Fs:           o.fs,
		SearchPath:   in.SearchPath,
		RunNumber:    in.RunNumber,
		LiveInputDir: in.LiveInputDir,
		ReplayFiles:  in.ReplayFiles,
	})
	if err != nil {
		return nil, err
	}
	if mode == UnitTest {
		log.Info("Overriding input to use a streamer file",
			zap.String("run_input_dir", source.RunInputDir),
			zap.Int64("run_number", source.RunNumber))
	}

	b := &Bundle{
		Mode:          mode,
		RunType:       in.RunType,
		RunNumber:     in.RunNumber,
		RunConfigType: in.RunConfigType,
		Source:        source,
		RawDataLabel:  ResolveRawDataLabel(in.RunType, mode),
	}

	if !in.RunType.HasBeamFit() {
		log.Warn("Run type has no beam-fit path; beam-spot monitoring and upload are not configured",
			zap.String("run_type", in.RunType.String()),
			zap.String("mode", mode.String()))
		return b, nil
	}

	dest, err := ResolveOutputDestination(mode, in.RunNumber, in.RunUniqueKey)
	if err != nil {
		return nil, err
	}
	collections := ResolveTrackingCollections(in.RunType)

	b.BeamFit = true
	b.Collections = &collections
	b.Destination = &dest

	log.Info("Resolved beam-spot job configuration",
		zap.String("mode", mode.String()),
		zap.String("run_type", in.RunType.String()),
		zap.Int64("run_number", in.RunNumber),
		zap.String("raw_data_label", b.RawDataLabel),
		zap.String("tag", dest.Tag),
		zap.String("frontier_key", dest.RunUniqueKey))

	return b, nil
}

// Fingerprint returns a stable hash of the bundle for identity purposes.
func Fingerprint(b *Bundle) (string, error) {
	if b == nil {
		return "", fmt.Errorf("bundle is nil")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
