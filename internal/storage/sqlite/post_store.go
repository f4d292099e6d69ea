// Package sqlite provides an embedded SQLite post store for single-host runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

const (
	defaultTable = "blog_posts"
	dateLayout   = "2006-01-02"
	// Fixed-width nanosecond timestamps keep TEXT ordering chronological.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostStore upserts post rows into a SQLite database file.
type PostStore struct {
	db    *sql.DB
	table string
	clock harvest.Clock
}

// NewPostStore opens (or creates) the database at path and ensures the post
// table exists. A nil clock falls back to the system time.
func NewPostStore(ctx context.Context, path, table string, clock harvest.Clock) (*PostStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	store := &PostStore{db: db, table: name, clock: clock}
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func (s *PostStore) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	identity       TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	published_date TEXT NOT NULL,
	link           TEXT NOT NULL,
	tags           TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	inserted_at    TEXT NOT NULL,
	updated_at     TEXT NOT NULL
)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the database handle.
func (s *PostStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const upsertQuery = `
INSERT INTO %[1]s (identity, title, published_date, link, tags, body, inserted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
	title = excluded.title,
	published_date = excluded.published_date,
	link = excluded.link,
	tags = excluded.tags,
	body = excluded.body,
	updated_at = excluded.updated_at
WHERE %[1]s.title IS NOT excluded.title
	OR %[1]s.published_date IS NOT excluded.published_date
	OR %[1]s.link IS NOT excluded.link
	OR %[1]s.tags IS NOT excluded.tags
	OR %[1]s.body IS NOT excluded.body`

// Upsert inserts or updates a post row keyed by identity. The write is a
// single statement; the surrounding transaction only classifies the outcome.
func (s *PostStore) Upsert(ctx context.Context, record harvest.PostRecord) (outcome harvest.Outcome, err error) {
	if record.Identity == "" {
		return "", &harvest.PersistenceError{Title: record.Title, Err: errors.New("record identity is required")}
	}
	fail := func(err error) (harvest.Outcome, error) {
		return "", &harvest.PersistenceError{Identity: record.Identity, Title: record.Title, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existed bool
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE identity = ?)`, s.table),
		record.Identity,
	).Scan(&existed)
	if err != nil {
		return fail(fmt.Errorf("lookup post: %w", err))
	}

	now := s.now().Format(timestampLayout)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(upsertQuery, s.table),
		record.Identity,
		record.Title,
		record.PublishedDate.UTC().Format(dateLayout),
		record.Link,
		harvest.JoinTags(record.Tags),
		record.Body,
		now,
		now,
	)
	if err != nil {
		return fail(fmt.Errorf("upsert post: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fail(fmt.Errorf("rows affected: %w", err))
	}
	if err = tx.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	switch {
	case affected == 0:
		return harvest.OutcomeUnchanged, nil
	case existed:
		return harvest.OutcomeUpdated, nil
	default:
		return harvest.OutcomeInserted, nil
	}
}

// Get loads a post row by identity.
func (s *PostStore) Get(ctx context.Context, identity string) (harvest.PostRecord, error) {
	query := fmt.Sprintf(`
SELECT identity, title, published_date, link, tags, body, inserted_at, updated_at
FROM %s
WHERE identity = ?`, s.table)

	var (
		rec                       harvest.PostRecord
		published, tags, ins, upd string
	)
	err := s.db.QueryRowContext(ctx, query, identity).Scan(
		&rec.Identity, &rec.Title, &published, &rec.Link, &tags, &rec.Body, &ins, &upd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return harvest.PostRecord{}, harvest.ErrNotFound
		}
		return harvest.PostRecord{}, fmt.Errorf("get post %s: %w", identity, err)
	}
	if rec.PublishedDate, err = time.Parse(dateLayout, published); err != nil {
		return harvest.PostRecord{}, fmt.Errorf("parse published_date: %w", err)
	}
	if rec.InsertedAt, err = time.Parse(time.RFC3339Nano, ins); err != nil {
		return harvest.PostRecord{}, fmt.Errorf("parse inserted_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, upd); err != nil {
		return harvest.PostRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	rec.Tags = harvest.SplitTags(tags)
	return rec, nil
}
