// Package mysql provides the MySQL-backed post store.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

const (
	defaultTable = "blog_posts"
	dateLayout   = "2006-01-02"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostStoreConfig controls the MySQL connection.
type PostStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int
	MaxConnLifetime time.Duration
}

// PostStore upserts post rows into MySQL.
type PostStore struct {
	db    *sql.DB
	table string
}

// NewPostStore opens a MySQL connection and verifies it.
func NewPostStore(ctx context.Context, cfg PostStoreConfig) (*PostStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	dsn, err := mysqldrv.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	connector, err := mysqldrv.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &PostStore{db: db, table: table}, nil
}

// NewPostStoreWithDB wraps an existing handle (primarily for testing).
func NewPostStoreWithDB(db *sql.DB, table string) (*PostStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PostStore{db: db, table: name}, nil
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

// Close releases the connection pool.
func (s *PostStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// upsertQuery relies on MySQL's affected-rows convention: 1 for an insert, 2
// for an update and 0 when the duplicate row already holds the same values.
// updated_at is assigned first so it can compare against the old row.
const upsertQuery = `
INSERT INTO %[1]s (identity, title, published_date, link, tags, body, inserted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(6), UTC_TIMESTAMP(6)) AS new
ON DUPLICATE KEY UPDATE
	updated_at = IF(
		BINARY %[1]s.title <=> BINARY new.title AND
		%[1]s.published_date <=> new.published_date AND
		BINARY %[1]s.link <=> BINARY new.link AND
		BINARY %[1]s.tags <=> BINARY new.tags AND
		BINARY %[1]s.body <=> BINARY new.body,
		%[1]s.updated_at, UTC_TIMESTAMP(6)),
	title = new.title,
	published_date = new.published_date,
	link = new.link,
	tags = new.tags,
	body = new.body`

// Upsert inserts or updates a post row keyed by identity.
func (s *PostStore) Upsert(ctx context.Context, record harvest.PostRecord) (harvest.Outcome, error) {
	if record.Identity == "" {
		return "", &harvest.PersistenceError{Title: record.Title, Err: errors.New("record identity is required")}
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(upsertQuery, s.table),
		record.Identity,
		record.Title,
		record.PublishedDate.UTC().Format(dateLayout),
		record.Link,
		harvest.JoinTags(record.Tags),
		record.Body,
	)
	if err != nil {
		return "", s.persistErr(record, fmt.Errorf("upsert post: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", s.persistErr(record, fmt.Errorf("rows affected: %w", err))
	}
	switch affected {
	case 0:
		return harvest.OutcomeUnchanged, nil
	case 1:
		return harvest.OutcomeInserted, nil
	case 2:
		return harvest.OutcomeUpdated, nil
	default:
		return "", s.persistErr(record, fmt.Errorf("unexpected rows affected: %d", affected))
	}
}

func (s *PostStore) persistErr(record harvest.PostRecord, err error) error {
	return &harvest.PersistenceError{Identity: record.Identity, Title: record.Title, Err: err}
}

// Get loads a post row by identity.
func (s *PostStore) Get(ctx context.Context, identity string) (harvest.PostRecord, error) {
	query := fmt.Sprintf(`
SELECT identity, title, published_date, link, tags, body, inserted_at, updated_at
FROM %s
WHERE identity = ?`, s.table)

	var (
		rec  harvest.PostRecord
		tags string
	)
	err := s.db.QueryRowContext(ctx, query, identity).Scan(
		&rec.Identity,
		&rec.Title,
		&rec.PublishedDate,
		&rec.Link,
		&tags,
		&rec.Body,
		&rec.InsertedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return harvest.PostRecord{}, harvest.ErrNotFound
		}
		return harvest.PostRecord{}, fmt.Errorf("get post %s: %w", identity, err)
	}
	rec.Tags = harvest.SplitTags(tags)
	return rec, nil
}
