package jobdesc

import "github.com/3leaps/beamspotlive/pkg/pset"

// Module templates as shipped by the monitoring packages. The job clones
// these with explicit overrides; templates are never modified.

func beamMonitorTemplate() pset.Set {
	return pset.New("BeamMonitor", "dqmBeamMonitor",
		pset.Tracked("monitorName", "BeamMonitor"),
		pset.Tracked("OnlineMode", false),
		pset.Tracked("recordName", "BeamSpotOnlineLegacyObjectsRcd"),
		pset.Untracked("useLockRecords", false),
		pset.Tracked("primaryVertex", "offlinePrimaryVertices"),
		pset.Tracked("beamSpot", "offlineBeamSpot"),
		pset.Tracked("hltResults", "TriggerResults::HLT"),
		pset.Untracked("jetTrigger", []string{}),
		pset.Tracked("fitEveryNLumi", 1),
		pset.Tracked("resetEveryNLumi", 20),
		pset.Tracked("fitPVEveryNLumi", 1),
		pset.Tracked("resetPVEveryNLumi", 2),
		pset.Tracked("Debug", false),
		pset.Tracked("BeamFitter", pset.Block(
			pset.Tracked("TrackCollection", "generalTracks"),
			pset.Tracked("WriteAscii", false),
			pset.Tracked("AsciiFileName", "BeamFitResults.txt"),
			pset.Tracked("WriteDIPAscii", false),
			pset.Tracked("DIPFileName", "BeamFitResultsForDIP.txt"),
			pset.Tracked("MinimumPt", 1.0),
			pset.Tracked("MaximumNormChi2", 10.0),
		)),
		pset.Tracked("PVFitter", pset.Block(
			pset.Tracked("VertexCollection", "offlinePrimaryVertices"),
			pset.Tracked("minNrVerticesForFit", 50),
			pset.Tracked("minVertexNdf", 10.0),
			pset.Tracked("errorScale", 0.9),
		)),
	)
}

func triggerTypeFilterTemplate() pset.Set {
	return pset.New("HLTTriggerTypeFilter", "hltTriggerTypeFilter",
		// 0=random, 1=physics, 2=calibration, 3=technical
		pset.Tracked("SelectedTriggerType", 0),
	)
}

func tcdsDigisTemplate() pset.Set {
	return pset.New("TcdsRawToDigi", "tcdsDigis",
		pset.Tracked("InputLabel", "rawDataCollector"),
	)
}

func dqmEnvTemplate() pset.Set {
	return pset.New("DQMEventInfo", "dqmEnv",
		pset.Untracked("subSystemFolder", "YourSubsystem"),
		pset.Untracked("eventRateWindow", 0.5),
		pset.Untracked("eventInfoFolder", "EventInfo"),
	)
}

func dqmSaverTemplate(typ, label string) pset.Set {
	return pset.New(typ, label,
		pset.Untracked("tag", "UNKNOWN"),
		pset.Untracked("runNumber", int64(111)),
		pset.Untracked("path", "./upload"),
	)
}

func onlineBeamSpotESProducerTemplate() pset.Set {
	return pset.New("OnlineBeamSpotESProducer", "BeamSpotESProducer",
		pset.Tracked("timeThreshold", 48),
		pset.Tracked("sigmaZThreshold", 2.0),
		pset.Tracked("sigmaXYThreshold", 4.0),
	)
}

func onlineBeamSpotProducerTemplate() pset.Set {
	return pset.New("BeamSpotOnlineProducer", "offlineBeamSpot",
		pset.Tracked("useTransientRecord", true),
		pset.Tracked("changeToCMSCoordinates", false),
		pset.Tracked("src", "hltScalersRawToDigi"),
		pset.Tracked("setSigmaZ", -1.0),
	)
}

func globalTagTemplate() pset.Set {
	return pset.New("PoolDBESSource", "GlobalTag",
		pset.Tracked("globaltag", "auto:run3_hlt"),
		pset.Tracked("DBParameters", pset.Block(
			pset.Untracked("authenticationPath", ""),
			pset.Untracked("messageLevel", 0),
		)),
	)
}
