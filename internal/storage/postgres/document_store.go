// Package postgres provides a Postgres-backed document store for listing records.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds listing documents when no table is configured.
const DefaultTable = "listings"

// Config controls the Postgres connection pool used for listing documents.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// DocumentStore keeps one jsonb document per listing record.
type DocumentStore struct {
	pool  pool
	table string
	now   func() time.Time
}

// NewDocumentStore connects a pool using cfg.
func NewDocumentStore(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DocumentStore{pool: p, table: table, now: utcNow}, nil
}

// NewDocumentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewDocumentStoreWithPool(p pool, table string) (*DocumentStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{pool: p, table: name, now: utcNow}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func utcNow() time.Time { return time.Now().UTC() }

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the document table if it does not exist.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	labels     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// InsertOne stores rec under a new UUIDv7.
func (s *DocumentStore) InsertOne(ctx context.Context, rec listing.Record) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, record, labels, created_at) VALUES ($1, $2, '{}'::jsonb, $3)`, s.table)
	if _, err := s.pool.Exec(ctx, query, id.String(), body, s.now()); err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return id.String(), nil
}

// UpdateOne merges labels into the document's labels.
func (s *DocumentStore) UpdateOne(ctx context.Context, id string, labels map[string]string) error {
	body, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET labels = labels || $2::jsonb WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, body)
	if err != nil {
		return fmt.Errorf("update listing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

// Find returns every document ordered by insertion time.
func (s *DocumentStore) Find(ctx context.Context) ([]storage.Document, error) {
	query := fmt.Sprintf(`SELECT id, record, labels, created_at FROM %s ORDER BY created_at, id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		var (
			doc          storage.Document
			record, labs []byte
		)
		if err := rows.Scan(&doc.ID, &record, &labs, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if err := json.Unmarshal(record, &doc.Record); err != nil {
			return nil, fmt.Errorf("decode listing %s: %w", doc.ID, err)
		}
		if len(labs) > 0 {
			if err := json.Unmarshal(labs, &doc.Labels); err != nil {
				return nil, fmt.Errorf("decode labels %s: %w", doc.ID, err)
			}
			if len(doc.Labels) == 0 {
				doc.Labels = nil
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return docs, nil
}
