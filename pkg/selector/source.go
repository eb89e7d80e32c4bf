package selector

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Fixed unit-test and stream settings.
const (
	// UnitTestDataSubpath is searched for under each search-path entry.
	UnitTestDataSubpath = "DQM/Integration/data"

	// UnitTestRunNumber is the run recorded in the unit-test streamer files.
	UnitTestRunNumber = 346373

	// BeamspotStreamLabel is the DAQ stream carrying beam-spot events.
	BeamspotStreamLabel = "streamDQMOnlineBeamspot"

	// DefaultLiveInputDir is where the live DAQ writes streamer files at P5.
	DefaultLiveInputDir = "/fff/BU0/ramdisk"

	defaultLiveStreamLabel = "streamDQM"
)

// SourceKind identifies the flavour of event source.
type SourceKind string

const (
	SourceUnitTestStreamer SourceKind = "unit_test_streamer"
	SourceLiveStreamer     SourceKind = "live_streamer"
	SourceFileReplay       SourceKind = "file_replay"
)

// Framework source module types.
const (
	ModuleStreamerReader = "DQMStreamerReader"
	ModulePoolSource     = "PoolSource"
)

// InputSource describes the event source handed to the framework.
type InputSource struct {
	Kind   SourceKind `json:"kind" yaml:"kind"`
	Module string     `json:"module" yaml:"module"`

	RunNumber   int64    `json:"run_number,omitempty" yaml:"run_number,omitempty"`
	RunInputDir string   `json:"run_input_dir,omitempty" yaml:"run_input_dir,omitempty"`
	StreamLabel string   `json:"stream_label,omitempty" yaml:"stream_label,omitempty"`
	FileNames   []string `json:"file_names,omitempty" yaml:"file_names,omitempty"`

	SelectEvents                  []string `json:"select_events,omitempty" yaml:"select_events,omitempty"`
	ScanOnce                      bool     `json:"scan_once" yaml:"scan_once"`
	MinEventsPerLumi              int      `json:"min_events_per_lumi" yaml:"min_events_per_lumi"`
	DelayMillis                   int      `json:"delay_millis" yaml:"delay_millis"`
	NextLumiTimeoutMillis         int      `json:"next_lumi_timeout_millis" yaml:"next_lumi_timeout_millis"`
	SkipFirstLumis                bool     `json:"skip_first_lumis" yaml:"skip_first_lumis"`
	DeleteDatFiles                bool     `json:"delete_dat_files" yaml:"delete_dat_files"`
	EndOfRunKills                 bool     `json:"end_of_run_kills" yaml:"end_of_run_kills"`
	InputFileTransitionsEachEvent bool     `json:"input_file_transitions_each_event" yaml:"input_file_transitions_each_event"`
}

// SourceEnv carries the environment the input source is resolved against.
type SourceEnv struct {
	// Fs is scanned read-only. Nil means the OS filesystem.
	Fs afero.Fs

	// SearchPath is a colon-separated list of release directories
	// (CMSSW_SEARCH_PATH).
	SearchPath string

	// RunNumber is the run the live source attaches to.
	RunNumber int64

	// LiveInputDir overrides DefaultLiveInputDir.
	LiveInputDir string

	// ReplayFiles are the files read in FileReplay mode.
	ReplayFiles []string
}

func (e SourceEnv) fs() afero.Fs {
	if e.Fs != nil {
		return afero.NewReadOnlyFs(e.Fs)
	}
	return afero.NewReadOnlyFs(afero.NewOsFs())
}

// ResolveInputSource builds the event source for mode.
func ResolveInputSource(mode JobMode, env SourceEnv) (InputSource, error) {
	switch mode {
	case UnitTest:
		dir, err := FindSearchPathDir(env.fs(), env.SearchPath, UnitTestDataSubpath)
		if err != nil {
			return InputSource{}, err
		}
		return InputSource{
			Kind:                  SourceUnitTestStreamer,
			Module:                ModuleStreamerReader,
			RunNumber:             UnitTestRunNumber,
			RunInputDir:           dir,
			StreamLabel:           BeamspotStreamLabel,
			SelectEvents:          []string{"*"},
			ScanOnce:              true,
			MinEventsPerLumi:      1000,
			DelayMillis:           500,
			NextLumiTimeoutMillis: 0,
		}, nil

	case Live, Playback:
		src := liveDefaults(env)
		src.StreamLabel = BeamspotStreamLabel
		return src, nil

	case FileReplay:
		return InputSource{
			Kind:      SourceFileReplay,
			Module:    ModulePoolSource,
			FileNames: append([]string(nil), env.ReplayFiles...),
		}, nil

	default:
		return InputSource{}, &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unsupported job mode %s", mode)}
	}
}

// liveDefaults is the shared live DAQ source before per-client overrides.
func liveDefaults(env SourceEnv) InputSource {
	dir := strings.TrimSpace(env.LiveInputDir)
	if dir == "" {
		dir = DefaultLiveInputDir
	}
	return InputSource{
		Kind:                  SourceLiveStreamer,
		Module:                ModuleStreamerReader,
		RunNumber:             env.RunNumber,
		RunInputDir:           dir,
		StreamLabel:           defaultLiveStreamLabel,
		SelectEvents:          []string{"*"},
		MinEventsPerLumi:      1,
		DelayMillis:           500,
		NextLumiTimeoutMillis: 0,
		EndOfRunKills:         true,
	}
}

// FindSearchPathDir returns the first searchPath entry containing subpath,
// joined with subpath. Empty entries are skipped.
func FindSearchPathDir(fs afero.Fs, searchPath, subpath string) (string, error) {
	var scanned []string
	for _, entry := range strings.Split(searchPath, ":") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		candidate := filepath.Join(entry, subpath)
		scanned = append(scanned, entry)
		ok, err := afero.Exists(fs, candidate)
		if err != nil || !ok {
			continue
		}
		return candidate, nil
	}

	if len(scanned) == 0 {
		return "", &ConfigurationError{
			Field:  "search_path",
			Reason: fmt.Sprintf("search path is empty; cannot locate %s", subpath),
		}
	}
	return "", &ConfigurationError{
		Field:  "search_path",
		Reason: fmt.Sprintf("no entry of %s contains %s", strings.Join(scanned, ":"), subpath),
	}
}
