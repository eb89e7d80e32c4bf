// Package selector resolves the configuration of the live HLT beam-spot
// monitoring job.
//
// Resolution is a one-shot, deterministic computation performed at job
// start. Given the unit-test and live flags, the run type, the playback
// predicate and the run metadata it selects the input source, the raw-data
// label, the tracking collections and the database upload target, in that
// fixed order, and returns them as an immutable Bundle.
package selector

import (
	"fmt"
	"strings"
)

// JobMode selects how the job reads data and where it uploads results.
// Exactly one mode is active per job.
type JobMode int

const (
	// FileReplay reads previously recorded files.
	FileReplay JobMode = iota

	// Live reads the shared DAQ streamer output at the experiment site.
	Live

	// UnitTest reads a fixed streamer file from the local data directory and
	// uploads to a local file-backed database.
	UnitTest

	// Playback mirrors Live on a playback system: no production upload
	// identity, no run locking, no OMS lookup.
	Playback
)

var modeNames = map[JobMode]string{
	FileReplay: "file_replay",
	Live:       "live",
	UnitTest:   "unit_test",
	Playback:   "playback",
}

// String returns the snake_case mode name.
func (m JobMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("JobMode(%d)", int(m))
}

// IsLive reports whether the job consumes the live DAQ stream.
func (m JobMode) IsLive() bool {
	return m == Live || m == Playback
}

// UsesLockRecords reports whether beam-spot payloads are guarded by run
// locks. Unit tests and playback systems never lock.
func (m JobMode) UsesLockRecords() bool {
	return m != UnitTest && m != Playback
}

// MarshalText implements encoding.TextMarshaler.
func (m JobMode) MarshalText() ([]byte, error) {
	name, ok := modeNames[m]
	if !ok {
		return nil, fmt.Errorf("invalid job mode %d", int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *JobMode) UnmarshalText(text []byte) error {
	key := strings.ToLower(strings.TrimSpace(string(text)))
	key = strings.ReplaceAll(key, "-", "_")
	for mode, name := range modeNames {
		if name == key {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown job mode %q", string(text))
}

// ResolveJobMode picks the base mode from the two startup flags.
//
// The unit-test flag overrides the live flag.
func ResolveJobMode(isUnitTest, isLiveRun bool) JobMode {
	switch {
	case isUnitTest:
		return UnitTest
	case isLiveRun:
		return Live
	default:
		return FileReplay
	}
}

// ApplyPlayback derives the Playback variant for jobs running on a playback
// system.
//
// UnitTest is returned unchanged: unit tests always target the local store.
// FileReplay on a playback system is rejected because the playback identity
// is only defined for the mirrored live stream.
func ApplyPlayback(mode JobMode, isPlaybackSystem bool) (JobMode, error) {
	if !isPlaybackSystem {
		return mode, nil
	}
	switch mode {
	case Live, Playback:
		return Playback, nil
	case UnitTest:
		return UnitTest, nil
	default:
		return mode, &ConfigurationError{
			Field:  "playback",
			Reason: fmt.Sprintf("%s input is not supported on a playback system", mode),
		}
	}
}
