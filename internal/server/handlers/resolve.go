package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/beamspotlive/internal/errors"
	"github.com/3leaps/beamspotlive/pkg/inputs"
	"github.com/3leaps/beamspotlive/pkg/jobdesc"
	"github.com/3leaps/beamspotlive/pkg/output"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// ResolveDefaults fill inputs the request leaves out.
type ResolveDefaults struct {
	SearchPath    string
	LiveInputDir  string
	RunConfigType string
	ReplayFiles   []string
}

// ResolveHandler serves GET /v1/resolve. Query parameters use the inputs
// file keys; the response is the resolved bundle and job description.
type ResolveHandler struct {
	Logger   *zap.Logger
	Fs       afero.Fs
	Defaults ResolveDefaults
}

// serverOnlyParams are inputs the service takes from its own configuration.
// search_path is scanned on the server filesystem, so a client-supplied value
// would let callers test which paths exist.
var serverOnlyParams = map[string]bool{"search_path": true}

// resolveQuery mirrors the inputs file with pointer fields so absent
// parameters stay absent and schema defaults apply. SearchPath is only
// filled from ResolveDefaults.
type resolveQuery struct {
	Version       *string  `mapstructure:"version" json:"version,omitempty"`
	UnitTest      *bool    `mapstructure:"unit_test" json:"unit_test,omitempty"`
	Live          *bool    `mapstructure:"live" json:"live,omitempty"`
	Playback      *bool    `mapstructure:"playback" json:"playback,omitempty"`
	RunType       *string  `mapstructure:"run_type" json:"run_type,omitempty"`
	RunNumber     *int64   `mapstructure:"run_number" json:"run_number,omitempty"`
	RunUniqueKey  *string  `mapstructure:"run_unique_key" json:"run_unique_key,omitempty"`
	RunConfigType *string  `mapstructure:"run_config_type" json:"run_config_type,omitempty"`
	SearchPath    *string  `mapstructure:"-" json:"search_path,omitempty"`
	LiveInputDir  *string  `mapstructure:"live_input_dir" json:"live_input_dir,omitempty"`
	ReplayFiles   []string `mapstructure:"replay_files" json:"replay_files,omitempty"`
}

func (h *ResolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Logger
	if log == nil {
		log = zap.NewNop()
	}

	file, err := h.decode(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	in, err := file.Inputs()
	if err != nil {
		respondWithError(w, r, apperrors.NewBadRequest(err.Error()))
		return
	}

	opts := []selector.Option{selector.WithLogger(log)}
	if h.Fs != nil {
		opts = append(opts, selector.WithFs(h.Fs))
	}
	bundle, err := selector.Resolve(in, opts...)
	if err != nil {
		log.Warn("Resolve request rejected", zap.Error(err))
		respondWithError(w, r, err)
		return
	}
	desc, err := jobdesc.Build(bundle)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	fp, err := selector.Fingerprint(bundle)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, output.BundleRecord{
		Fingerprint: fp,
		Bundle:      bundle,
		Description: desc,
	})
}

func (h *ResolveHandler) decode(r *http.Request) (*inputs.File, error) {
	raw := make(map[string]any)
	for key, values := range r.URL.Query() {
		if serverOnlyParams[key] {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("query parameter %q is set by the server configuration", key)).
				WithDetails(map[string]any{"field": key})
		}
		if key == "replay_files" {
			var files []string
			for _, v := range values {
				for _, f := range strings.Split(v, ",") {
					if f = strings.TrimSpace(f); f != "" {
						files = append(files, f)
					}
				}
			}
			raw[key] = files
			continue
		}
		if len(values) > 1 {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("query parameter %q given more than once", key))
		}
		raw[key] = values[0]
	}

	var q resolveQuery
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &q,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	h.applyDefaults(&q)

	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return inputs.LoadFromBytes(body, "query.json")
}

func (h *ResolveHandler) applyDefaults(q *resolveQuery) {
	if q.Version == nil {
		v := inputs.DefaultVersion
		q.Version = &v
	}
	if h.Defaults.SearchPath != "" {
		q.SearchPath = &h.Defaults.SearchPath
	}
	if q.LiveInputDir == nil && h.Defaults.LiveInputDir != "" {
		q.LiveInputDir = &h.Defaults.LiveInputDir
	}
	if q.RunConfigType == nil && h.Defaults.RunConfigType != "" {
		q.RunConfigType = &h.Defaults.RunConfigType
	}
	if q.ReplayFiles == nil && len(h.Defaults.ReplayFiles) > 0 {
		q.ReplayFiles = append([]string(nil), h.Defaults.ReplayFiles...)
	}
}
