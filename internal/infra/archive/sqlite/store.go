// Package sqlite persists encoded snapshots in a single SQLite table. One row
// per snapshot name; saving under an existing name replaces the row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"chronicle/internal/codec"
	"chronicle/pkg/domain"
)

var _ domain.Archive = (*Store)(nil)

// Store is a SQLite-backed snapshot archive.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the archive database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "chronicle.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		description TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Save encodes the snapshot and upserts it under name. The label columns are
// duplicated out of the payload so List never has to decode snapshots.
func (s *Store) Save(ctx context.Context, name string, snapshot domain.Snapshot, label domain.Label) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("snapshot name cannot be empty")
	}
	payload, err := codec.Encode(snapshot, label)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (name, seq, created_at, description, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			seq = excluded.seq,
			created_at = excluded.created_at,
			description = excluded.description,
			payload = excluded.payload`,
		name, int64(label.Seq), label.At.UTC().UnixNano(), label.Description, payload)
	if err != nil {
		return "", fmt.Errorf("upsert snapshot %s: %w", name, err)
	}
	return name, nil
}

// Load decodes the snapshot stored under ref.
func (s *Store) Load(ctx context.Context, ref string) (domain.Snapshot, domain.Label, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE name = ?`, ref).Scan(&payload)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
