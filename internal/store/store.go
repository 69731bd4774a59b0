// Package store is the server-side persistence for the equipment tree,
// checklist items and attachment metadata. Rows live in SQLite (modernc) or
// Postgres (pgx); attachment content lives in a blob.Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/config"
	"checklist-cli/internal/logging"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const DefaultAttachmentMaxBytes int64 = 50 * 1024 * 1024

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

type Store struct {
	db       *sql.DB
	dialect  dialect
	blobs    blob.Store
	log      *zap.Logger
	maxBytes int64
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = logging.OrNop(l) } }

// WithMaxAttachmentBytes caps attachment size; n <= 0 keeps the default.
func WithMaxAttachmentBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, blobs blob.Store, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("store: nil blob store")
	}
	s := &Store{blobs: blobs, log: zap.NewNop(), maxBytes: DefaultAttachmentMaxBytes}
	for _, o := range opts {
		o(s)
	}

	var err error
	switch cfg.Driver {
	case "", "sqlite":
		s.dialect = dialectSQLite
		s.db, err = openSQLite(ctx, cfg.DSN)
	case "postgres":
		s.dialect = dialectPostgres
		s.db, err = openPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("store: sqlite dsn required")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite registers as "sqlite".
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Blobs() blob.Store { return s.blobs }

func (s *Store) MaxAttachmentBytes() int64 { return s.maxBytes }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS machines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rank TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assemblies (
			id TEXT PRIMARY KEY,
			machine_id TEXT NOT NULL,
			name TEXT NOT NULL,
			rank TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assemblies_machine ON assemblies(machine_id)`,
		`CREATE TABLE IF NOT EXISTS parts (
			id TEXT PRIMARY KEY,
			assembly_id TEXT NOT NULL,
			name TEXT NOT NULL,
			rank TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_assembly ON parts(assembly_id)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			part_id TEXT NOT NULL,
			text TEXT NOT NULL,
			section TEXT NOT NULL,
			option_type TEXT NOT NULL,
			description TEXT NOT NULL,
			rank TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_part ON items(part_id)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			sha256 TEXT NOT NULL,
			blob_key TEXT NOT NULL,
			created_at_unixms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_item ON attachments(item_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) exists(ctx context.Context, q queryer, table, id string) (bool, error) {
	var n int
	err := s.queryRow(ctx, q, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}
