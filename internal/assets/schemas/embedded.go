// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so the CLI and library work
// regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// JobInputsSchema is the embedded job-inputs JSON schema (draft 2020-12).
//
// It describes the inputs file read by "beamspotlive resolve --inputs" and
// the query parameters of GET /v1/resolve. pkg/inputs compiles it once and
// validates every document against it before decoding.
//
//go:embed job-inputs.schema.json
var JobInputsSchema []byte
