// Package postgres provides the Postgres-backed post store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

const defaultTable = "blog_posts"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostStoreConfig controls the Postgres connection pool used for post rows.
type PostStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostStore upserts post rows into Postgres.
type PostStore struct {
	pool  queryCloser
	table string
}

// NewPostStore connects to Postgres and verifies the connection.
func NewPostStore(ctx context.Context, cfg PostStoreConfig) (*PostStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostStore{pool: pool, table: table}, nil
}

// NewPostStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostStoreWithPool(pool queryCloser, table string) (*PostStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PostStore{pool: pool, table: name}, nil
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

// Close releases the underlying pool resources.
func (s *PostStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// upsertQuery inserts a post or overwrites its mutable fields in one statement.
// updated_at only moves when a mutable field actually changed; inserted_at is
// never touched after creation. No row comes back for a no-op re-sighting.
const upsertQuery = `
INSERT INTO %[1]s (
	identity,
	title,
	published_date,
	link,
	tags,
	body,
	inserted_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,now(),now()
)
ON CONFLICT (identity) DO UPDATE SET
	title = EXCLUDED.title,
	published_date = EXCLUDED.published_date,
	link = EXCLUDED.link,
	tags = EXCLUDED.tags,
	body = EXCLUDED.body,
	updated_at = now()
WHERE (%[1]s.title, %[1]s.published_date, %[1]s.link, %[1]s.tags, %[1]s.body)
	IS DISTINCT FROM
	(EXCLUDED.title, EXCLUDED.published_date, EXCLUDED.link, EXCLUDED.tags, EXCLUDED.body)
RETURNING (xmax = 0) AS inserted`

// Upsert inserts or updates a post row keyed by identity.
func (s *PostStore) Upsert(ctx context.Context, record harvest.PostRecord) (harvest.Outcome, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("post store is not configured")
	}
	if record.Identity == "" {
		return "", &harvest.PersistenceError{Title: record.Title, Err: errors.New("record identity is required")}
	}

	args := []any{
		record.Identity,
		record.Title,
		record.PublishedDate,
		record.Link,
		harvest.JoinTags(record.Tags),
		record.Body,
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(upsertQuery, s.table), args...).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return harvest.OutcomeUnchanged, nil
	case err != nil:
		return "", &harvest.PersistenceError{
			Identity: record.Identity,
			Title:    record.Title,
			Err:      fmt.Errorf("upsert post: %w", err),
		}
	case inserted:
		return harvest.OutcomeInserted, nil
	default:
		return harvest.OutcomeUpdated, nil
	}
}

// Get loads a post row by identity.
func (s *PostStore) Get(ctx context.Context, identity string) (harvest.PostRecord, error) {
	query := fmt.Sprintf(`
SELECT identity, title, published_date, link, tags, body, inserted_at, updated_at
FROM %s
WHERE identity = $1`, s.table)

	var (
		rec  harvest.PostRecord
		tags string
	)
	err := s.pool.QueryRow(ctx, query, identity).Scan(
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
		if errors.Is(err, pgx.ErrNoRows) {
			return harvest.PostRecord{}, harvest.ErrNotFound
		}
		return harvest.PostRecord{}, fmt.Errorf("get post %s: %w", identity, err)
	}
	rec.Tags = harvest.SplitTags(tags)
	return rec, nil
}
