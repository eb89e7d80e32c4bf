// Package jobdesc assembles the framework job description for a resolved
// beam-spot monitoring configuration.
//
// Every module is produced by cloning a template with an explicit override
// map. Nothing is mutated after Build returns.
package jobdesc

import (
	"fmt"

	"github.com/3leaps/beamspotlive/pkg/pset"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// Process identity.
const (
	ProcessName = "BeamMonitor"
	Era         = "Run3"

	// SubsystemFolder is the DQM folder and saver tag of this client.
	SubsystemFolder = "BeamMonitorHLT"

	// RunConfigProduction is the DQM run-config type of the production system.
	RunConfigProduction = "production"
)

// BeamFitter output locations on the online cluster.
const (
	AsciiFileName          = "/nfshome0/yumiceva/BeamMonitorDQM/BeamFitResults.txt"
	ProductionDIPFileName  = "/nfshome0/dqmpro/BeamMonitorDQM/BeamFitResults.txt"
	DevelopmentDIPFileName = "/nfshome0/dqmdev/BeamMonitorDQM/BeamFitResults.txt"
)

// JetTriggers select vertices for DIP publication. Matching is by substring.
var JetTriggers = []string{
	"HLT_HT300_Beamspot", "HLT_HT300_Beamspot",
	"HLT_PAZeroBias_v", "HLT_ZeroBias_", "HLT_QuadJet",
	"HLT_HI",
	"HLT_PixelClusters",
}

// Sequence is an ordered list of module or sequence labels.
type Sequence struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// Description is a complete job description.
type Description struct {
	Process   string     `json:"process" yaml:"process"`
	Era       string     `json:"era" yaml:"era"`
	Source    pset.Set   `json:"source" yaml:"source"`
	Modules   []pset.Set `json:"modules" yaml:"modules"`
	ESModules []pset.Set `json:"es_modules" yaml:"es_modules"`
	Services  []pset.Set `json:"services,omitempty" yaml:"services,omitempty"`
	Sequences []Sequence `json:"sequences" yaml:"sequences"`

	// Paths is empty when the run type has no beam-fit path.
	Paths []Sequence `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// Module returns the module with the given label.
func (d *Description) Module(label string) (pset.Set, bool) {
	for _, m := range d.Modules {
		if m.Label == label {
			return m, true
		}
	}
	return pset.Set{}, false
}

// Service returns the service of the given type.
func (d *Description) Service(typ string) (pset.Set, bool) {
	for _, s := range d.Services {
		if s.Type == typ {
			return s, true
		}
	}
	return pset.Set{}, false
}

// Build assembles the job description for b.
func Build(b *selector.Bundle) (*Description, error) {
	if b == nil {
		return nil, fmt.Errorf("bundle is nil")
	}

	d := &Description{
		Process: ProcessName,
		Era:     Era,
		Source:  sourceSet(b.Source),
	}

	var build builder
	build.add(&d.Modules, triggerTypeFilterTemplate(), "", map[string]any{
		"SelectedTriggerType": 1,
	})
	build.add(&d.Modules, dqmEnvTemplate(), "", map[string]any{
		"subSystemFolder": SubsystemFolder,
	})
	saverOverrides := map[string]any{
		"tag":       SubsystemFolder,
		"runNumber": b.RunNumber,
	}
	build.add(&d.Modules, dqmSaverTemplate("DQMFileSaverOnline", "dqmSaver"), "", saverOverrides)
	build.add(&d.Modules, dqmSaverTemplate("DQMFileSaverPB", "dqmSaverPB"), "", saverOverrides)
	build.add(&d.Modules, tcdsDigisTemplate(), "", map[string]any{
		"InputLabel": b.RawDataLabel,
	})
	build.add(&d.Modules, onlineBeamSpotProducerTemplate(), "", nil)
	build.add(&d.Modules, beamMonitorTemplate(), "", beamMonitorOverrides(b))

	build.add(&d.ESModules, onlineBeamSpotESProducerTemplate(), "", nil)
	build.add(&d.ESModules, globalTagTemplate(), "", map[string]any{
		"DBParameters.authenticationPath": ".",
	})
	if build.err != nil {
		return nil, build.err
	}

	d.Sequences = []Sequence{
		{Name: "dqmcommon", Members: []string{"dqmEnv", "dqmSaver", "dqmSaverPB"}},
		{Name: "monitor", Members: []string{"dqmBeamMonitor"}},
	}

	if b.BeamFit {
		if b.Destination == nil {
			return nil, fmt.Errorf("beam-fit bundle has no output destination")
		}
		d.Services = append(d.Services, dbOutputService(*b.Destination))
		d.Paths = []Sequence{{
			Name:    "p",
			Members: []string{"hltTriggerTypeFilter", "tcdsDigis", "dqmcommon", "offlineBeamSpot", "monitor"},
		}}
	}

	return d, nil
}

type builder struct {
	err error
}

func (bd *builder) add(dst *[]pset.Set, tmpl pset.Set, label string, overrides map[string]any) {
	if bd.err != nil {
		return
	}
	s, err := tmpl.Clone(label, overrides)
	if err != nil {
		bd.err = err
		return
	}
	*dst = append(*dst, s)
}

func beamMonitorOverrides(b *selector.Bundle) map[string]any {
	o := map[string]any{
		"useLockRecords":           b.Mode.UsesLockRecords(),
		"BeamFitter.AsciiFileName": AsciiFileName,
		"BeamFitter.WriteDIPAscii": true,
	}
	if b.RunConfigType == RunConfigProduction {
		o["BeamFitter.WriteAscii"] = true
		o["BeamFitter.DIPFileName"] = ProductionDIPFileName
	} else {
		o["BeamFitter.WriteAscii"] = false
		o["BeamFitter.DIPFileName"] = DevelopmentDIPFileName
	}

	if !b.BeamFit || b.Collections == nil {
		return o
	}

	o["monitorName"] = SubsystemFolder
	o["OnlineMode"] = true
	o["recordName"] = selector.RecordName
	o["resetEveryNLumi"] = 5
	o["resetPVEveryNLumi"] = 5
	o["PVFitter.minNrVerticesForFit"] = 20
	o["PVFitter.minVertexNdf"] = 10.0
	// keep checking this with new releases; expected close to 1
	o["PVFitter.errorScale"] = 0.95
	o["BeamFitter.TrackCollection"] = b.Collections.TrackCollection
	o["primaryVertex"] = b.Collections.PrimaryVertex
	o["PVFitter.VertexCollection"] = b.Collections.VertexFitCollection
	o["jetTrigger"] = JetTriggers
	o["hltResults"] = "TriggerResults::HLT"
	return o
}

func sourceSet(src selector.InputSource) pset.Set {
	if src.Module == selector.ModulePoolSource {
		return pset.New(src.Module, "source",
			pset.Untracked("fileNames", src.FileNames),
		)
	}
	return pset.New(src.Module, "source",
		pset.Untracked("runNumber", src.RunNumber),
		pset.Untracked("runInputDir", src.RunInputDir),
		pset.Untracked("SelectEvents", src.SelectEvents),
		pset.Untracked("streamLabel", src.StreamLabel),
		pset.Untracked("scanOnce", src.ScanOnce),
		pset.Untracked("minEventsPerLumi", src.MinEventsPerLumi),
		pset.Untracked("delayMillis", src.DelayMillis),
		pset.Untracked("nextLumiTimeoutMillis", src.NextLumiTimeoutMillis),
		pset.Untracked("skipFirstLumis", src.SkipFirstLumis),
		pset.Untracked("deleteDatFiles", src.DeleteDatFiles),
		pset.Untracked("endOfRunKills", src.EndOfRunKills),
		pset.Untracked("inputFileTransitionsEachEvent", src.InputFileTransitionsEachEvent),
	)
}

func dbOutputService(dest selector.OutputDestination) pset.Set {
	params := []pset.Param{
		pset.Tracked("DBParameters", pset.Block(
			pset.Untracked("messageLevel", 0),
			pset.Untracked("authenticationPath", "."),
		)),
		pset.Tracked("connect", dest.Connection),
		pset.Untracked("preLoadConnectionString", dest.PreloadConnection),
		pset.Untracked("runNumber", dest.RunNumber),
	}
	if dest.IsLocal() {
		params = append(params, pset.Untracked("lastLumiFile", dest.LastLumiFile))
	} else {
		params = append(params, pset.Untracked("omsServiceUrl", dest.OmsServiceURL))
	}
	params = append(params,
		pset.Untracked("latency", dest.Latency),
		pset.Untracked("autoCommit", dest.AutoCommit),
	)
	if !dest.IsLocal() {
		params = append(params,
			pset.Untracked("saveLogsOnDB", dest.SaveLogsOnDB),
			pset.Untracked("jobName", dest.JobName),
		)
	}
	params = append(params,
		pset.Tracked("toPut", []pset.Set{pset.Block(
			pset.Tracked("record", dest.RecordName),
			pset.Tracked("tag", dest.Tag),
			pset.Untracked("timetype", dest.TimeType),
			pset.Untracked("onlyAppendUpdatePolicy", dest.OnlyAppendUpdatePolicy),
		)}),
		pset.Untracked("frontierKey", dest.RunUniqueKey),
	)
	return pset.New("OnlineDBOutputService", "OnlineDBOutputService", params...)
}
