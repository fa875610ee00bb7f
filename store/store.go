// Package store caches compiled programs in SQLite, keyed by the SHA-256
// of their source text. Programs are stored in their binary artifact form.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/miniplc0/pkg/bytecode"
)

//go:embed schema.sql
var schemaSQL string

var log = commonlog.GetLogger("plc0.store")

// Entry describes one cached program.
type Entry struct {
	SourceHash   string
	Version      int
	Instructions int
	CreatedAt    time.Time
	Hits         int
}

// Store is a compiled-program cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path and
// initializes its schema. Use ":memory:" for an in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Key returns the cache key for source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached program for source. The boolean is false on a
// miss. Entries written by another artifact version count as misses.
func (s *Store) Get(ctx context.Context, source string) (*bytecode.Program, bool, error) {
	key := Key(source)

	var version int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT version, program FROM artifacts WHERE source_hash = ?`, key,
	).Scan(&version, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debugf("miss %s", key[:12])
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get artifact: %w", err)
	}
	if version != int(bytecode.ProgramVersion) {
		log.Debugf("stale %s (version %d)", key[:12], version)
		return nil, false, nil
	}

	program, err := bytecode.UnmarshalProgram(blob)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt artifact %s: %w", key[:12], err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET hits = hits + 1 WHERE source_hash = ?`, key,
	); err != nil {
		return nil, false, fmt.Errorf("failed to record hit: %w", err)
	}

	log.Debugf("hit %s", key[:12])
	return program, true, nil
}

// Put stores the compiled program for source, replacing any previous entry.
func (s *Store) Put(ctx context.Context, source string, p *bytecode.Program) error {
	blob, err := bytecode.MarshalProgram(p)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (source_hash, version, instructions, program, created_at, hits)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		Key(source), int(bytecode.ProgramVersion), p.Len(), blob, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Entries lists cached programs, newest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_hash, version, instructions, created_at, hits
		 FROM artifacts ORDER BY created_at DESC, source_hash`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.SourceHash, &e.Version, &e.Instructions, &created, &e.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every cached program and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}
