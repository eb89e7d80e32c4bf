package jobdesc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/beamspotlive/pkg/pset"
	"github.com/3leaps/beamspotlive/pkg/runtype"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

func liveBundle(t *testing.T, rt runtype.RunType, runConfig string) *selector.Bundle {
	t.Helper()
	b, err := selector.Resolve(selector.Inputs{
		Live:          true,
		RunType:       rt,
		RunNumber:     367100,
		RunUniqueKey:  "frontier-key",
		RunConfigType: runConfig,
	})
	require.NoError(t, err)
	return b
}

func mustGet(t *testing.T, s pset.Set, name string) any {
	t.Helper()
	v, ok := s.Get(name)
	require.True(t, ok, "missing %s.%s", s.Label, name)
	return v
}

func TestBuild_NilBundle(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestBuild_BeamFitPath(t *testing.T) {
	d, err := Build(liveBundle(t, runtype.HeavyIon, RunConfigProduction))
	require.NoError(t, err)

	assert.Equal(t, "BeamMonitor", d.Process)
	assert.Equal(t, "Run3", d.Era)

	require.Len(t, d.Paths, 1)
	assert.Equal(t, []string{"hltTriggerTypeFilter", "tcdsDigis", "dqmcommon", "offlineBeamSpot", "monitor"}, d.Paths[0].Members)

	filter, ok := d.Module("hltTriggerTypeFilter")
	require.True(t, ok)
	assert.Equal(t, 1, mustGet(t, filter, "SelectedTriggerType"))

	tcds, ok := d.Module("tcdsDigis")
	require.True(t, ok)
	assert.Equal(t, selector.RawDataRepacker, tcds.String("InputLabel"))

	env, ok := d.Module("dqmEnv")
	require.True(t, ok)
	assert.Equal(t, "BeamMonitorHLT", env.String("subSystemFolder"))

	saver, ok := d.Module("dqmSaverPB")
	require.True(t, ok)
	assert.Equal(t, "BeamMonitorHLT", saver.String("tag"))
	assert.Equal(t, int64(367100), mustGet(t, saver, "runNumber"))

	mon, ok := d.Module("dqmBeamMonitor")
	require.True(t, ok)
	assert.Equal(t, "BeamMonitorHLT", mon.String("monitorName"))
	assert.Equal(t, true, mustGet(t, mon, "OnlineMode"))
	assert.Equal(t, selector.RecordName, mon.String("recordName"))
	assert.Equal(t, 5, mustGet(t, mon, "resetEveryNLumi"))
	assert.Equal(t, 5, mustGet(t, mon, "resetPVEveryNLumi"))
	assert.Equal(t, 20, mustGet(t, mon, "PVFitter.minNrVerticesForFit"))
	assert.Equal(t, 0.95, mustGet(t, mon, "PVFitter.errorScale"))
	assert.Equal(t, "hltPFMuonMergingPPOnAA", mon.String("BeamFitter.TrackCollection"))
	assert.Equal(t, "hltVerticesPFFilterPPOnAA", mon.String("primaryVertex"))
	assert.Equal(t, "hltVerticesPFFilterPPOnAA", mon.String("PVFitter.VertexCollection"))
	assert.Equal(t, JetTriggers, mustGet(t, mon, "jetTrigger"))
	assert.Equal(t, true, mustGet(t, mon, "useLockRecords"))
	assert.Equal(t, true, mustGet(t, mon, "BeamFitter.WriteAscii"))
	assert.Equal(t, ProductionDIPFileName, mon.String("BeamFitter.DIPFileName"))

	gt, ok := func() (pset.Set, bool) {
		for _, m := range d.ESModules {
			if m.Label == "GlobalTag" {
				return m, true
			}
		}
		return pset.Set{}, false
	}()
	require.True(t, ok)
	assert.Equal(t, ".", gt.String("DBParameters.authenticationPath"))

	svc, ok := d.Service("OnlineDBOutputService")
	require.True(t, ok)
	assert.Equal(t, selector.ProductionConnection, svc.String("connect"))
	assert.Equal(t, selector.OmsServiceURL, svc.String("omsServiceUrl"))
	assert.Equal(t, "BeamSpotOnlineHLT", svc.String("jobName"))
	assert.Equal(t, "frontier-key", svc.String("frontierKey"))
	_, hasLastLumi := svc.Get("lastLumiFile")
	assert.False(t, hasLastLumi)

	toPut := mustGet(t, svc, "toPut").([]pset.Set)
	require.Len(t, toPut, 1)
	assert.Equal(t, "BeamSpotOnlineHLTObjectsRcd", toPut[0].String("record"))
	assert.Equal(t, "BeamSpotOnlineHLT", toPut[0].String("tag"))
}

func TestBuild_DevelopmentRunConfig(t *testing.T) {
	d, err := Build(liveBundle(t, runtype.ProtonProton, "playback"))
	require.NoError(t, err)

	mon, ok := d.Module("dqmBeamMonitor")
	require.True(t, ok)
	assert.Equal(t, false, mustGet(t, mon, "BeamFitter.WriteAscii"))
	assert.Equal(t, true, mustGet(t, mon, "BeamFitter.WriteDIPAscii"))
	assert.Equal(t, DevelopmentDIPFileName, mon.String("BeamFitter.DIPFileName"))
	assert.Equal(t, "hltPFMuonMerging", mon.String("BeamFitter.TrackCollection"))
}

func TestBuild_NoBeamFit(t *testing.T) {
	d, err := Build(liveBundle(t, runtype.Other, RunConfigProduction))
	require.NoError(t, err)

	assert.Empty(t, d.Paths)
	assert.Empty(t, d.Services)

	mon, ok := d.Module("dqmBeamMonitor")
	require.True(t, ok)
	assert.Equal(t, "BeamMonitor", mon.String("monitorName"))
	assert.Equal(t, "generalTracks", mon.String("BeamFitter.TrackCollection"))
}

func TestBuild_UnitTestService(t *testing.T) {
	b := &selector.Bundle{
		Mode:         selector.UnitTest,
		RunType:      runtype.ProtonProton,
		RunNumber:    346373,
		RawDataLabel: selector.RawDataCollector,
		Source: selector.InputSource{
			Kind:         selector.SourceUnitTestStreamer,
			Module:       selector.ModuleStreamerReader,
			RunNumber:    selector.UnitTestRunNumber,
			RunInputDir:  "/cmssw/src/DQM/Integration/data",
			StreamLabel:  selector.BeamspotStreamLabel,
			SelectEvents: []string{"*"},
		},
		BeamFit:     true,
		Collections: &selector.CollectionNames{TrackCollection: "hltPFMuonMerging", PrimaryVertex: "hltVerticesPFFilter", VertexFitCollection: "hltVerticesPFFilter"},
	}
	dest, err := selector.ResolveOutputDestination(selector.UnitTest, 346373, "ut-key")
	require.NoError(t, err)
	b.Destination = &dest

	d, err := Build(b)
	require.NoError(t, err)

	svc, ok := d.Service("OnlineDBOutputService")
	require.True(t, ok)
	assert.Equal(t, selector.LocalConnection, svc.String("connect"))
	assert.Equal(t, selector.LocalConnection, svc.String("preLoadConnectionString"))
	assert.Equal(t, selector.UnitTestLastLumiFile, svc.String("lastLumiFile"))
	_, hasOms := svc.Get("omsServiceUrl")
	assert.False(t, hasOms)
	_, hasJob := svc.Get("jobName")
	assert.False(t, hasJob)

	mon, _ := d.Module("dqmBeamMonitor")
	assert.Equal(t, false, mustGet(t, mon, "useLockRecords"))

	assert.Equal(t, "DQMStreamerReader", d.Source.Type)
	assert.Equal(t, "streamDQMOnlineBeamspot", d.Source.String("streamLabel"))
}

func TestBuild_BeamFitWithoutDestination(t *testing.T) {
	b := liveBundle(t, runtype.ProtonProton, "")
	b.Destination = nil
	_, err := Build(b)
	assert.Error(t, err)
}

func TestBuild_FileReplaySource(t *testing.T) {
	b, err := selector.Resolve(selector.Inputs{
		RunType:     runtype.Other,
		ReplayFiles: []string{"file:/data/run1.root"},
	})
	require.NoError(t, err)

	d, err := Build(b)
	require.NoError(t, err)
	assert.Equal(t, "PoolSource", d.Source.Type)
	assert.Equal(t, []string{"file:/data/run1.root"}, mustGet(t, d.Source, "fileNames"))
}

func TestDescription_Renders(t *testing.T) {
	d, err := Build(liveBundle(t, runtype.ProtonProton, RunConfigProduction))
	require.NoError(t, err)

	jsonBytes, err := json.Marshal(d)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(jsonBytes, &generic))
	assert.Equal(t, "BeamMonitor", generic["process"])

	yamlBytes, err := yaml.Marshal(d)
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBytes, &fromYAML))
	assert.Equal(t, "Run3", fromYAML["era"])
	modules, ok := fromYAML["modules"].([]any)
	require.True(t, ok)
	assert.Len(t, modules, len(d.Modules))
}
