package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/beamspotlive/pkg/selector"
)

// Entry is one recorded resolution.
type Entry struct {
	ID           string          `json:"id"`
	RunNumber    int64           `json:"run_number"`
	RunUniqueKey string          `json:"run_unique_key,omitempty"`
	Mode         string          `json:"mode"`
	RunType      string          `json:"run_type"`
	BeamFit      bool            `json:"beam_fit"`
	Fingerprint  string          `json:"fingerprint"`
	ResolvedAt   time.Time       `json:"resolved_at"`
	Bundle       json.RawMessage `json:"bundle"`
}

// NewEntry builds a ledger entry for b resolved at the given time.
func NewEntry(b *selector.Bundle, resolvedAt time.Time) (Entry, error) {
	if b == nil {
		return Entry{}, fmt.Errorf("bundle is nil")
	}
	fp, err := selector.Fingerprint(b)
	if err != nil {
		return Entry{}, err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal bundle: %w", err)
	}

	e := Entry{
		ID:          uuid.NewString(),
		RunNumber:   b.RunNumber,
		Mode:        b.Mode.String(),
		RunType:     b.RunType.String(),
		BeamFit:     b.BeamFit,
		Fingerprint: fp,
		ResolvedAt:  resolvedAt.UTC(),
		Bundle:      data,
	}
	if b.Destination != nil {
		e.RunUniqueKey = b.Destination.RunUniqueKey
	}
	return e, nil
}

// RecordResult reports what Record did.
type RecordResult struct {
	Entry Entry

	// Inserted is false when the same configuration was already recorded
	// for the run; Entry is then the existing row.
	Inserted bool

	// Previous is the latest earlier entry for the run with a different
	// fingerprint, set only when Inserted is true.
	Previous *Entry
}

// Drifted reports whether the run was previously recorded with a different
// configuration.
func (r *RecordResult) Drifted() bool {
	return r != nil && r.Inserted && r.Previous != nil
}

// Record stores e unless an entry with the same run number and fingerprint
// already exists.
func Record(ctx context.Context, db *sql.DB, e Entry) (*RecordResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if strings.TrimSpace(e.Fingerprint) == "" {
		return nil, fmt.Errorf("entry fingerprint is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ResolvedAt.IsZero() {
		e.ResolvedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanEntry(tx.QueryRowContext(ctx,
		selectEntry+` WHERE run_number = ? AND fingerprint = ?`, e.RunNumber, e.Fingerprint))
	if err != nil {
		return nil, fmt.Errorf("query resolution: %w", err)
	}
	if existing != nil {
		return &RecordResult{Entry: *existing}, nil
	}

	previous, err := scanEntry(tx.QueryRowContext(ctx,
		selectEntry+` WHERE run_number = ? ORDER BY resolved_at DESC, rowid DESC LIMIT 1`, e.RunNumber))
	if err != nil {
		return nil, fmt.Errorf("query previous resolution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resolutions (
			resolution_id, run_number, run_unique_key, mode, run_type,
			beam_fit, fingerprint, bundle_json, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunNumber, nullString(e.RunUniqueKey), e.Mode, e.RunType,
		boolToInt(e.BeamFit), e.Fingerprint, string(e.Bundle), e.ResolvedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert resolution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolution: %w", err)
	}
	return &RecordResult{Entry: e, Inserted: true, Previous: previous}, nil
}

// Query filters List.
type Query struct {
	// RunNumber restricts results to one run; zero means all runs.
	RunNumber int64

	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// List returns entries newest first.
func List(ctx context.Context, db *sql.DB, q Query) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0")
	}

	query := selectEntry
	var args []any
	if q.RunNumber != 0 {
		query += ` WHERE run_number = ?`
		args = append(args, q.RunNumber)
	}
	query += ` ORDER BY resolved_at DESC, rowid DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return out, nil
}

// Latest returns the most recent entry for runNumber, or nil if the run has
// never been recorded.
func Latest(ctx context.Context, db *sql.DB, runNumber int64) (*Entry, error) {
	entries, err := List(ctx, db, Query{RunNumber: runNumber, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// timeLayout is fixed width so resolved_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectEntry = `SELECT resolution_id, run_number, run_unique_key, mode, run_type,
	beam_fit, fingerprint, bundle_json, resolved_at FROM resolutions`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry returns nil, nil when row is a *sql.Row with no result.
func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e          Entry
		key        sql.NullString
		beamFit    int
		bundle     string
		resolvedAt string
	)
	err := row.Scan(&e.ID, &e.RunNumber, &key, &e.Mode, &e.RunType,
		&beamFit, &e.Fingerprint, &bundle, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("parse resolved_at: %w", err)
	}
	e.ResolvedAt = t
	e.RunUniqueKey = key.String
	e.BeamFit = beamFit != 0
	e.Bundle = json.RawMessage(bundle)
	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
