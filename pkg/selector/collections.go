package selector

import "github.com/3leaps/beamspotlive/pkg/runtype"

// Raw-data input labels for the TCDS digitizer.
const (
	RawDataRepacker     = "rawDataRepacker"
	RawDataCollector    = "rawDataCollector"
	RawDataTCDSSelector = "hltFEDSelectorTCDS"
)

// ResolveRawDataLabel picks the raw-data collection the TCDS digitizer
// reads. Heavy-ion live running takes precedence over the unit-test case.
func ResolveRawDataLabel(rt runtype.RunType, mode JobMode) string {
	switch {
	case rt == runtype.HeavyIon && mode.IsLive():
		return RawDataRepacker
	case mode == UnitTest:
		return RawDataCollector
	default:
		// TCDS FEDs 1024 and 1025 only.
		return RawDataTCDSSelector
	}
}

// CollectionNames are the HLT collections the beam fitter consumes.
type CollectionNames struct {
	TrackCollection     string `json:"track_collection" yaml:"track_collection"`
	PrimaryVertex       string `json:"primary_vertex" yaml:"primary_vertex"`
	VertexFitCollection string `json:"vertex_fit_collection" yaml:"vertex_fit_collection"`
}

var (
	heavyIonCollections = CollectionNames{
		TrackCollection:     "hltPFMuonMergingPPOnAA",
		PrimaryVertex:       "hltVerticesPFFilterPPOnAA",
		VertexFitCollection: "hltVerticesPFFilterPPOnAA",
	}
	defaultCollections = CollectionNames{
		TrackCollection:     "hltPFMuonMerging",
		PrimaryVertex:       "hltVerticesPFFilter",
		VertexFitCollection: "hltVerticesPFFilter",
	}
)

// ResolveTrackingCollections returns the heavy-ion collection names for
// heavy-ion runs and the default names otherwise. Callers only use the
// result for run types with a beam-fit path.
func ResolveTrackingCollections(rt runtype.RunType) CollectionNames {
	if rt == runtype.HeavyIon {
		return heavyIonCollections
	}
	return defaultCollections
}
