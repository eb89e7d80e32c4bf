package selector

// Upload identity and connection targets.
const (
	RecordName    = "BeamSpotOnlineHLTObjectsRcd"
	BaseTag       = "BeamSpotOnlineHLT"
	BaseJobName   = "BeamSpotOnlineHLT"
	OmsServiceURL = "http://cmsoms-services.cms:9949/urn:xdaq-application:lid=100/getRunAndLumiSection"

	ProductionConnection = "oracle://cms_orcon_prod/CMS_CONDITIONS"
	ProductionPreload    = "frontier://FrontierProd/CMS_CONDITIONS"
	LocalConnection      = "sqlite_file:BeamSpotOnlineHLT.db"

	// PlaybackSuffix is appended to the tag and job name on playback systems.
	PlaybackSuffix = "Playback"

	// UnitTestLastLumiFile feeds the last processed lumi to the local upload.
	UnitTestLastLumiFile = "src/DQM/Integration/python/clients/last_lumi.txt"
)

// OutputDestination is the database upload target for beam-spot payloads.
type OutputDestination struct {
	RecordName        string `json:"record_name" yaml:"record_name"`
	Tag               string `json:"tag" yaml:"tag"`
	JobName           string `json:"job_name" yaml:"job_name"`
	Connection        string `json:"connection" yaml:"connection"`
	PreloadConnection string `json:"preload_connection" yaml:"preload_connection"`
	OmsServiceURL     string `json:"oms_service_url" yaml:"oms_service_url"`
	UseLockRecords    bool   `json:"use_lock_records" yaml:"use_lock_records"`

	RunNumber    int64  `json:"run_number" yaml:"run_number"`
	RunUniqueKey string `json:"run_unique_key" yaml:"run_unique_key"`

	// LastLumiFile is only set for the local upload.
	LastLumiFile string `json:"last_lumi_file,omitempty" yaml:"last_lumi_file,omitempty"`

	// SaveLogsOnDB records the upload log in the production database.
	SaveLogsOnDB bool `json:"save_logs_on_db" yaml:"save_logs_on_db"`

	Latency                int    `json:"latency" yaml:"latency"`
	AutoCommit             bool   `json:"auto_commit" yaml:"auto_commit"`
	TimeType               string `json:"time_type" yaml:"time_type"`
	OnlyAppendUpdatePolicy bool   `json:"only_append_update_policy" yaml:"only_append_update_policy"`
}

// IsLocal reports whether the destination is the local file-backed store.
func (d OutputDestination) IsLocal() bool {
	return d.Connection == LocalConnection
}

// ResolveOutputDestination builds the upload target for mode. The run number
// and unique key are passed through unchanged; the run number must be
// positive.
func ResolveOutputDestination(mode JobMode, runNumber int64, runUniqueKey string) (OutputDestination, error) {
	if runNumber <= 0 {
		return OutputDestination{}, invalidRunNumber(runNumber)
	}

	dest := OutputDestination{
		RecordName:             RecordName,
		Tag:                    BaseTag,
		JobName:                BaseJobName,
		Connection:             ProductionConnection,
		PreloadConnection:      ProductionPreload,
		OmsServiceURL:          OmsServiceURL,
		UseLockRecords:         mode.UsesLockRecords(),
		RunNumber:              runNumber,
		RunUniqueKey:           runUniqueKey,
		SaveLogsOnDB:           true,
		Latency:                2,
		AutoCommit:             true,
		TimeType:               "Lumi",
		OnlyAppendUpdatePolicy: true,
	}

	switch mode {
	case Playback:
		dest.Tag += PlaybackSuffix
		dest.JobName += PlaybackSuffix
		dest.OmsServiceURL = ""
	case UnitTest:
		dest.Connection = LocalConnection
		dest.PreloadConnection = LocalConnection
		dest.OmsServiceURL = ""
		dest.SaveLogsOnDB = false
		dest.LastLumiFile = UnitTestLastLumiFile
	}

	return dest, nil
}
