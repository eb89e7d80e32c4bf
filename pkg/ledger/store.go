// Package ledger keeps a history of resolved job configurations per run.
//
// Each resolution is stored with its fingerprint. Recording the same
// configuration for a run twice is a no-op; a different configuration for a
// run already in the ledger is stored as a new row and reported as drift.
//
// A ledger is either a local SQLite file shared by the DQM machines of one
// site, or a remote libsql database when several sites report into one
// history. Remote ledgers need a cgo-enabled build.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MemoryPath opens a throwaway in-memory ledger.
const MemoryPath = ":memory:"

// ErrRemoteUnsupported is returned by Open for a remote URL in a build
// without the libsql driver.
var ErrRemoteUnsupported = errors.New("remote ledger requires a cgo-enabled build")

// Config locates the ledger database. URL wins over Path when both are set.
type Config struct {
	// Path is a local SQLite file, or MemoryPath.
	Path string

	// URL is a remote ledger, libsql://host[/db].
	URL string

	// AuthToken authenticates against URL. A token already present in the
	// URL query is kept.
	AuthToken string
}

// location is a resolved Config.
type location struct {
	dsn    string
	remote bool
	memory bool
}

// locate validates cfg and builds the driver DSN. Local parent directories
// are created so a fresh site needs no setup.
func locate(cfg Config) (location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return location{}, fmt.Errorf("invalid ledger url: %w", err)
		}
		if u.Scheme != "libsql" || u.Host == "" {
			return location{}, fmt.Errorf("invalid ledger url %q: want libsql://host", raw)
		}
		if token := strings.TrimSpace(cfg.AuthToken); token != "" {
			q := u.Query()
			if q.Get("authToken") == "" {
				q.Set("authToken", token)
				u.RawQuery = q.Encode()
			}
		}
		return location{dsn: u.String(), remote: true}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch path {
	case "":
		return location{}, errors.New("ledger path or url is required")
	case MemoryPath:
		return location{dsn: MemoryPath, memory: true}, nil
	}

	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		// #nosec G301 -- shared DQM data directories are group/world readable
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return location{}, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return location{dsn: "file:" + path}, nil
}

// Open opens the ledger, creating a local file if needed. Callers run
// Migrate before use.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loc, err := locate(cfg)
	if err != nil {
		return nil, err
	}
	if loc.remote && !remoteSupported {
		return nil, ErrRemoteUnsupported
	}

	db, err := sql.Open(driverName, loc.dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if !loc.remote {
		if err := tuneLocal(ctx, db, loc.memory); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// tuneLocal pins a local ledger to one connection. resolve --record writes
// while history and serve read, so file ledgers run in WAL mode and wait on
// locks instead of failing.
func tuneLocal(ctx context.Context, db *sql.DB, memory bool) error {
	db.SetMaxOpenConns(1)
	if memory {
		// Each new connection would see its own empty database.
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		var ignored any
		if err := db.QueryRowContext(ctx, pragma).Scan(&ignored); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}
