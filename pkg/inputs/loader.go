package inputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates an inputs file from the given path.
//
// The format is chosen by extension: .yaml/.yml for YAML, .json for JSON.
// Any other extension is tried as YAML first, then JSON.
//
// After loading, the version and live flag are defaulted. run_config_type is
// left empty when the file omits it, so the caller can still take it from the
// site configuration before falling back to DefaultRunConfigType.
//
// Returns an error if:
//   - The file does not exist (wraps ErrNotFound)
//   - The file cannot be read (permission denied, I/O error)
//   - The content is not valid YAML or JSON
//   - The document fails schema validation (ValidationErrors, which wraps
//     ErrValidationFailed)
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading inputs file: %s", path)
		}
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromReader reads and validates an inputs document from r, for example
// stdin or an HTTP body.
//
// The path parameter only drives format detection and error messages; pass
// "" to try YAML first. Reader errors are wrapped; everything else behaves as
// LoadFromBytes.
func LoadFromReader(r io.Reader, path string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates an inputs document from raw bytes.
//
// The path parameter is used for error messages and format detection. If
// path has no recognised extension, YAML is tried first, then JSON.
//
// Validation runs on the raw document (converted to JSON) before it is
// decoded into File. Unknown keys are rejected by the schema
// (additionalProperties: false) instead of being dropped silently by struct
// decoding. The schema requires version and run_type and limits
// run_config_type to production, playback or userarea; run_type names and
// run numbers are checked later by Inputs and the selector.
//
// Returns an error if data is empty or whitespace, is neither YAML nor JSON,
// or fails validation. Defaults are applied as described on Load.
func LoadFromBytes(data []byte, path string) (*File, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("inputs file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(jsonData, &f); err != nil {
		return nil, fmt.Errorf("invalid inputs file: %w", err)
	}
	f.ApplyDefaults()
	return &f, nil
}

func toJSON(data []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in inputs file: %w", err)
		}
		return data, nil
	case ".yaml", ".yml":
		return yamlToJSON(data)
	default:
		jsonData, err := yamlToJSON(data)
		if err == nil {
			return jsonData, nil
		}
		var raw any
		if jsonErr := json.Unmarshal(data, &raw); jsonErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("failed to parse inputs file (tried YAML and JSON): %w", err)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in inputs file: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert inputs file to JSON: %w", err)
	}
	return jsonData, nil
}
