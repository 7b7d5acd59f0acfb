// Package store caches parsed datasets in SQLite so a source that later
// becomes unreachable can still be shown, and an unchanged source does not
// need to be parsed again.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// schemaVersion is stored in PRAGMA user_version. An older cache is dropped
// and rebuilt.
const schemaVersion = 2

// Cache is a SQLite-backed dataset cache keyed by source.
type Cache struct {
	db   *sql.DB
	path string
}

// Entry is one cached dataset.
type Entry struct {
	Source string
	Hash   string

	// Settings fingerprints the parse settings the records were typed with.
	Settings string

	FetchedAt time.Time
	Records   []types.Record

	// Report is the parse report, issues included.
	Report records.Report
}

// Open opens or creates the cache database at path. ":memory:" is accepted
// for tests.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, path: path}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize() error {
	var version int
	if err := c.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		drop := `
		DROP TABLE IF EXISTS datasets;
		DROP TABLE IF EXISTS records;
		DROP TABLE IF EXISTS issues;
		`
		if _, err := c.db.Exec(drop); err != nil {
			return fmt.Errorf("failed to drop outdated tables: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		source TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		settings TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		row_count INTEGER NOT NULL,
		record_count INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS records (
		source TEXT NOT NULL,
		seq INTEGER NOT NULL,
		state TEXT NOT NULL,
		date TEXT NOT NULL,
		cases INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		PRIMARY KEY (source, seq)
	);
	CREATE TABLE IF NOT EXISTS issues (
		source TEXT NOT NULL,
		seq INTEGER NOT NULL,
		row_num INTEGER NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		reason TEXT NOT NULL,
		action TEXT NOT NULL,
		PRIMARY KEY (source, seq)
	);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := c.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save replaces the cached dataset for entry.Source. FetchedAt is set to now.
func (c *Cache) Save(ctx context.Context, entry Entry) error {
	source := entry.Source
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"records", "issues"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE source = ?`, source); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (source, seq, state, date, cases, deaths) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range entry.Records {
		if _, err := stmt.ExecContext(ctx, source, i, r.State, r.Date.Format(types.DateLayout), r.Cases, r.Deaths); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	issueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issues (source, seq, row_num, field, value, reason, action) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer issueStmt.Close()

	for i, issue := range entry.Report.Issues {
		e := issue.Err
		if _, err := issueStmt.ExecContext(ctx, source, i, e.Row, e.Field, e.Value, e.Reason, string(issue.Action)); err != nil {
			return fmt.Errorf("failed to insert issue %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (source, content_hash, settings, fetched_at, row_count, record_count) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			content_hash = excluded.content_hash,
			settings = excluded.settings,
			fetched_at = excluded.fetched_at,
			row_count = excluded.row_count,
			record_count = excluded.record_count`,
		source, entry.Hash, entry.Settings, time.Now().UTC().Format(time.RFC3339), entry.Report.Rows, len(entry.Records))
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	return tx.Commit()
}

// Lookup returns the cached dataset for source. ok is false when nothing is
// cached.
func (c *Cache) Lookup(ctx context.Context, source string) (Entry, bool, error) {
	entry := Entry{Source: source}

	var fetchedAt string
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT content_hash, settings, fetched_at, row_count, record_count FROM datasets WHERE source = ?`, source,
	).Scan(&entry.Hash, &entry.Settings, &fetchedAt, &entry.Report.Rows, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query dataset: %w", err)
	}
	entry.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)

	rows, err := c.db.QueryContext(ctx,
		`SELECT state, date, cases, deaths FROM records WHERE source = ? ORDER BY seq`, source)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	entry.Records = make([]types.Record, 0, count)
	for rows.Next() {
		var r types.Record
		var date string
		if err := rows.Scan(&r.State, &date, &r.Cases, &r.Deaths); err != nil {
			return Entry{}, false, fmt.Errorf("failed to scan record: %w", err)
		}
		if r.Date, err = time.Parse(types.DateLayout, date); err != nil {
			return Entry{}, false, fmt.Errorf("corrupt cached date %q: %w", date, err)
		}
		entry.Records = append(entry.Records, r)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("failed to read records: %w", err)
	}
	entry.Report.Accepted = len(entry.Records)

	if entry.Report.Issues, err = c.issues(ctx, source); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (c *Cache) issues(ctx context.Context, source string) ([]records.Issue, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT row_num, field, value, reason, action FROM issues WHERE source = ? ORDER BY seq`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []records.Issue
	for rows.Next() {
		e := &records.MalformedRecordError{}
		var action string
		if err := rows.Scan(&e.Row, &e.Field, &e.Value, &e.Reason, &action); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, records.Issue{Err: e, Action: records.Action(action)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}
	return issues, nil
}
