// Package inputs loads the job-inputs file for a beam-spot monitoring job.
//
// The file carries the external facts run control and the job manager know
// at startup. It is YAML or JSON and is validated against an embedded JSON
// Schema that rejects unknown properties.
//
// Example (YAML):
//
//	version: "1.0"
//	live: true
//	playback: false
//	run_type: pp_run
//	run_number: 367100
//	run_unique_key: 5d1b6c
//	run_config_type: production
package inputs

import (
	"fmt"

	"github.com/3leaps/beamspotlive/pkg/runtype"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// File is a validated job-inputs file.
type File struct {
	Schema  string `json:"$schema,omitempty" yaml:"$schema,omitempty"`
	Version string `json:"version" yaml:"version"`

	UnitTest bool `json:"unit_test,omitempty" yaml:"unit_test,omitempty"`

	// Live defaults to true; only an explicit false selects file replay.
	Live     *bool `json:"live,omitempty" yaml:"live,omitempty"`
	Playback bool  `json:"playback,omitempty" yaml:"playback,omitempty"`

	RunType       string `json:"run_type" yaml:"run_type"`
	RunNumber     int64  `json:"run_number,omitempty" yaml:"run_number,omitempty"`
	RunUniqueKey  string `json:"run_unique_key,omitempty" yaml:"run_unique_key,omitempty"`
	RunConfigType string `json:"run_config_type,omitempty" yaml:"run_config_type,omitempty"`

	SearchPath   string   `json:"search_path,omitempty" yaml:"search_path,omitempty"`
	LiveInputDir string   `json:"live_input_dir,omitempty" yaml:"live_input_dir,omitempty"`
	ReplayFiles  []string `json:"replay_files,omitempty" yaml:"replay_files,omitempty"`
}

// Default values for optional fields.
const (
	DefaultVersion       = "1.0"
	DefaultLive          = true
	DefaultRunConfigType = "userarea"
)

// ApplyDefaults fills in the version and live flag. RunConfigType stays
// empty when absent so callers can still fill it from site configuration;
// Inputs falls back to DefaultRunConfigType.
func (f *File) ApplyDefaults() {
	if f.Version == "" {
		f.Version = DefaultVersion
	}
	if f.Live == nil {
		live := DefaultLive
		f.Live = &live
	}
}

// LiveEnabled returns the live flag, or DefaultLive when unset.
func (f *File) LiveEnabled() bool {
	if f.Live == nil {
		return DefaultLive
	}
	return *f.Live
}

// RunConfig returns the run-config type, or DefaultRunConfigType when unset.
func (f *File) RunConfig() string {
	if f.RunConfigType == "" {
		return DefaultRunConfigType
	}
	return f.RunConfigType
}

// Inputs converts the file into resolver inputs.
func (f *File) Inputs() (selector.Inputs, error) {
	rt, err := runtype.Parse(f.RunType)
	if err != nil {
		return selector.Inputs{}, fmt.Errorf("run_type: %w", err)
	}
	return selector.Inputs{
		UnitTest:      f.UnitTest,
		Live:          f.LiveEnabled(),
		Playback:      f.Playback,
		RunType:       rt,
		RunNumber:     f.RunNumber,
		RunUniqueKey:  f.RunUniqueKey,
		RunConfigType: f.RunConfig(),
		SearchPath:    f.SearchPath,
		LiveInputDir:  f.LiveInputDir,
		ReplayFiles:   append([]string(nil), f.ReplayFiles...),
	}, nil
}
