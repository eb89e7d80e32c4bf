package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for resolved configurations.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteBundle emits a resolved configuration record.
	WriteBundle(ctx context.Context, runNumber int64, b *BundleRecord) error

	// WriteDrift emits a configuration drift record.
	WriteDrift(ctx context.Context, runNumber int64, d *DriftRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, runNumber int64, err *ErrorRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized using a mutex so lines never interleave.
type JSONLWriter struct {
	w     io.Writer
	jobID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a new JSONL writer; jobID correlates every record
// written by one invocation.
func NewJSONLWriter(w io.Writer, jobID string) *JSONLWriter {
	return &JSONLWriter{w: w, jobID: jobID}
}

// WriteBundle emits a resolved configuration record.
func (jw *JSONLWriter) WriteBundle(ctx context.Context, runNumber int64, b *BundleRecord) error {
	return jw.writeRecord(ctx, TypeBundle, runNumber, b)
}

// WriteDrift emits a configuration drift record.
func (jw *JSONLWriter) WriteDrift(ctx context.Context, runNumber int64, d *DriftRecord) error {
	return jw.writeRecord(ctx, TypeDrift, runNumber, d)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, runNumber int64, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, runNumber, err)
}

// Close marks the writer as closed. The underlying writer is left open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, runNumber int64, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:      recordType,
		TS:        time.Now().UTC(),
		JobID:     jw.jobID,
		RunNumber: runNumber,
		Data:      dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
