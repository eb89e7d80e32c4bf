// Package runtype classifies data-taking runs as reported by run control.
//
// The classification drives which track/vertex collections the beam-spot
// monitor consumes and whether a beam-fit path is built at all.
package runtype

import (
	"fmt"
	"strings"
)

// RunType is the run-control classification of the current run.
type RunType int

const (
	// Other covers cosmics and any run type without beam-spot monitoring.
	Other RunType = iota
	ProtonProton
	ProtonProtonStage1
	// HighPileUp is the hpu_run category.
	HighPileUp
	HeavyIon
	Commissioning
)

var canonicalNames = map[RunType]string{
	Other:              "other",
	ProtonProton:       "pp_run",
	ProtonProtonStage1: "pp_run_stage1",
	HighPileUp:         "hpu_run",
	HeavyIon:           "hi_run",
	Commissioning:      "commissioning_run",
}

var aliases = map[string]RunType{
	"pp_run":            ProtonProton,
	"pp":                ProtonProton,
	"pp_run_stage1":     ProtonProtonStage1,
	"pp_stage1":         ProtonProtonStage1,
	"hpu_run":           HighPileUp,
	"hpu":               HighPileUp,
	"hi_run":            HeavyIon,
	"hi":                HeavyIon,
	"heavy_ion":         HeavyIon,
	"commissioning_run": Commissioning,
	"commissioning":     Commissioning,
	"cosmic_run":        Other,
	"cosmic_run_stage1": Other,
	"cosmic":            Other,
	"other":             Other,
}

// All returns every category in declaration order.
func All() []RunType {
	return []RunType{Other, ProtonProton, ProtonProtonStage1, HighPileUp, HeavyIon, Commissioning}
}

// Parse resolves a run-control name or short alias. Matching is case
// insensitive and treats '-' like '_'.
func Parse(s string) (RunType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if key == "" {
		return Other, fmt.Errorf("run type is empty")
	}
	rt, ok := aliases[key]
	if !ok {
		return Other, fmt.Errorf("unknown run type %q", s)
	}
	return rt, nil
}

// String returns the canonical run-control name.
func (r RunType) String() string {
	if name, ok := canonicalNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RunType(%d)", int(r))
}

// HasBeamFit reports whether runs of this type get a beam-fit path.
func (r RunType) HasBeamFit() bool {
	switch r {
	case ProtonProton, ProtonProtonStage1, HighPileUp, HeavyIon, Commissioning:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RunType) MarshalText() ([]byte, error) {
	name, ok := canonicalNames[r]
	if !ok {
		return nil, fmt.Errorf("invalid run type %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RunType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
