package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how Render encodes a value.
type Format string

// Supported formats.
const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON, FormatJSONL:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected yaml, json or jsonl)", s)
	}
}

// Render writes v to w in the given format. JSON is indented; JSONL is a
// single compact line.
func Render(w io.Writer, format Format, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return &WriteError{Op: "encode_yaml", Err: err}
		}
		if err := enc.Close(); err != nil {
			return &WriteError{Op: "encode_yaml", Err: err}
		}
		return nil
	case FormatJSON, FormatJSONL:
		var (
			data []byte
			err  error
		)
		if format == FormatJSON {
			data, err = json.MarshalIndent(v, "", "  ")
		} else {
			data, err = json.Marshal(v)
		}
		if err != nil {
			return &WriteError{Op: "marshal_data", Err: err}
		}
		if err := writeAll(w, append(data, '\n')); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
