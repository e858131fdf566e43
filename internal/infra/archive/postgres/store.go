// Package postgres provides a Postgres-backed snapshot archive that mirrors
// the sqlite driver semantics over a shared database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"chronicle/internal/codec"
	"chronicle/pkg/domain"
)

var _ domain.Archive = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/chronicle?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed snapshot archive.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed archive using the provided DSN (falls back
// to defaultDSN) and ensures the snapshot table exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSnapshotTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureSnapshotTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		seq BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		description TEXT NOT NULL,
		payload BYTEA NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure snapshots table: %w", err)
	}
	return nil
}

// Save encodes the snapshot and upserts it under name.
func (s *Store) Save(ctx context.Context, name string, snapshot domain.Snapshot, label domain.Label) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("snapshot name cannot be empty")
	}
	payload, err := codec.Encode(snapshot, label)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (name, seq, created_at, description, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			seq = EXCLUDED.seq,
			created_at = EXCLUDED.created_at,
			description = EXCLUDED.description,
			payload = EXCLUDED.payload`,
		name, int64(label.Seq), label.At.UTC().UnixNano(), label.Description, payload)
	if err != nil {
		return "", fmt.Errorf("upsert snapshot %s: %w", name, err)
	}
	return name, nil
}

// Load decodes the snapshot stored under ref.
func (s *Store) Load(ctx context.Context, ref string) (domain.Snapshot, domain.Label, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE name = $1`, ref).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, ref)
	}
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("select snapshot %s: %w", ref, err)
	}
	return codec.Decode(payload)
}

// List enumerates stored snapshots ordered by name.
func (s *Store) List(ctx context.Context) ([]domain.ArchiveInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, seq, created_at, description, length(payload)
		FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.ArchiveInfo
	for rows.Next() {
		var (
			info      domain.ArchiveInfo
			seq       int64
			createdAt int64
		)
		if err := rows.Scan(&info.Name, &seq, &createdAt, &info.Label.Description, &info.Size); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		info.Ref = info.Name
		info.Label.Seq = uint64(seq)
		info.Label.At = time.Unix(0, createdAt).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Delete removes the named snapshot, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
