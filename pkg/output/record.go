// Package output provides JSONL output for resolved job configurations.
//
// Output is structured as typed record envelopes containing resolved
// bundles, configuration drift notices and errors. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/beamspotlive/pkg/jobdesc"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: beamspotlive.<type>.v<version>
const (
	// TypeBundle identifies resolved configuration records.
	TypeBundle = "beamspotlive.bundle.v1"

	// TypeDrift identifies records reporting a changed configuration for a
	// run that was already recorded.
	TypeDrift = "beamspotlive.drift.v1"

	// TypeError identifies error records.
	TypeError = "beamspotlive.error.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "beamspotlive.bundle.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this invocation.
	JobID string `json:"job_id"`

	// RunNumber is the run the record refers to; zero when unknown.
	RunNumber int64 `json:"run_number"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// BundleRecord is the data payload for a resolved configuration.
type BundleRecord struct {
	Fingerprint string               `json:"fingerprint"`
	Bundle      *selector.Bundle     `json:"bundle"`
	Description *jobdesc.Description `json:"description,omitempty"`
}

// DriftRecord is emitted when a run is resolved to a configuration that
// differs from the one previously recorded for it.
type DriftRecord struct {
	PreviousFingerprint string    `json:"previous_fingerprint"`
	Fingerprint         string    `json:"fingerprint"`
	PreviousResolvedAt  time.Time `json:"previous_resolved_at"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Field names the offending input, if known.
	Field string `json:"field,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeConfiguration indicates an inconsistent combination of inputs.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeInvalidRunNumber indicates a missing or non-positive run number.
	ErrCodeInvalidRunNumber = "INVALID_RUN_NUMBER"

	// ErrCodeInvalidInputs indicates the inputs file failed validation.
	ErrCodeInvalidInputs = "INVALID_INPUTS"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// ErrorRecordFor classifies err into an ErrorRecord.
func ErrorRecordFor(err error) *ErrorRecord {
	rec := &ErrorRecord{Code: ErrCodeInternal, Message: err.Error()}

	var cfgErr *selector.ConfigurationError
	switch {
	case errors.Is(err, selector.ErrInvalidRunNumber):
		rec.Code = ErrCodeInvalidRunNumber
		rec.Field = "run_number"
	case errors.As(err, &cfgErr):
		rec.Code = ErrCodeConfiguration
		rec.Field = cfgErr.Field
	case errors.Is(err, selector.ErrConfiguration):
		rec.Code = ErrCodeConfiguration
	}
	return rec
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
