// Package requestlog records gateway requests asynchronously to SQLite.
// Entries are queued in memory and flushed in batches; the hot path never
// blocks on the database.
package requestlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one recorded gateway request.
type Entry struct {
	ID             string `json:"id"`
	TsNs           int64  `json:"ts_ns"`
	ClientIP       string `json:"client_ip"`
	Endpoint       string `json:"endpoint"`
	Platform       string `json:"platform"`
	SourceURL      string `json:"source_url"`
	FormatID       string `json:"format_id"`
	HTTPStatus     int    `json:"http_status"`
	ErrorCode      string `json:"error_code"`
	CacheHit       bool   `json:"cache_hit"`
	EgressInstance string `json:"egress_instance"`
	DurationNs     int64  `json:"duration_ns"`
}

// Repo is the SQLite-backed store for request log entries.
type Repo struct {
	db *sql.DB
}

// OpenRepo opens (creating if needed) the request log database at path and
// applies pending migrations.
func OpenRepo(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("requestlog: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("requestlog: open %s: %w", path, err)
	}
	// SQLite allows one writer; more connections just contend.
	db.SetMaxOpenConns(1)

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func migrateDB(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("requestlog: init migration source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("requestlog: init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("requestlog: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("requestlog: migrate up: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// InsertBatch inserts entries in one transaction. Individual row failures
// are logged and skipped; the count of inserted rows is returned.
func (r *Repo) InsertBatch(entries []Entry) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("requestlog: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO request_logs (
		id, ts_ns, client_ip, endpoint, platform, source_url, format_id,
		http_status, error_code, cache_hit, egress_instance, duration_ns
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("requestlog: prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range entries {
		e := &entries[i]
		cacheHit := 0
		if e.CacheHit {
			cacheHit = 1
		}
		if _, err := stmt.Exec(
			e.ID, e.TsNs, e.ClientIP, e.Endpoint, e.Platform, e.SourceURL, e.FormatID,
			e.HTTPStatus, e.ErrorCode, cacheHit, e.EgressInstance, e.DurationNs,
		); err != nil {
			log.Printf("requestlog: skip row id=%q: %v", e.ID, err)
			continue
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("requestlog: commit: %w", err)
	}
	return inserted, nil
}

// Recent returns the newest entries, most recent first.
func (r *Repo) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`SELECT
		id, ts_ns, client_ip, endpoint, platform, source_url, format_id,
		http_status, error_code, cache_hit, egress_instance, duration_ns
	FROM request_logs ORDER BY ts_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("requestlog: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var cacheHit int
		if err := rows.Scan(
			&e.ID, &e.TsNs, &e.ClientIP, &e.Endpoint, &e.Platform, &e.SourceURL, &e.FormatID,
			&e.HTTPStatus, &e.ErrorCode, &cacheHit, &e.EgressInstance, &e.DurationNs,
		); err != nil {
			return nil, fmt.Errorf("requestlog: scan: %w", err)
		}
		e.CacheHit = cacheHit != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the total number of stored entries.
func (r *Repo) Count() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM request_logs`).Scan(&n)
	return n, err
}
