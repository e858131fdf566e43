// Package blobarchive persists encoded snapshots through any blob.Store.
// With the filesystem blob driver this yields the canonical on-disk layout:
// one `<name>.snap` file per snapshot under the configured directory.
package blobarchive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"chronicle/internal/blob"
	"chronicle/internal/codec"
	"chronicle/pkg/domain"
)

const contentType = "application/x-chronicle-snapshot"

// Store implements domain.Archive over a blob backend.
type Store struct {
	blobs blob.Store
}

// New wraps the provided blob store as a snapshot archive.
func New(blobs blob.Store) *Store {
	return &Store{blobs: blobs}
}

func keyFor(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("snapshot name cannot be empty")
	}
	if strings.HasSuffix(name, codec.FileExt) {
		return name, nil
	}
	return name + codec.FileExt, nil
}

// Save encodes the snapshot and writes it durably before returning. The blob
// driver's atomic write guarantees a failed save leaves no partial file.
func (s *Store) Save(ctx context.Context, name string, snapshot domain.Snapshot, label domain.Label) (string, error) {
	key, err := keyFor(name)
	if err != nil {
		return "", err
	}
	payload, err := codec.Encode(snapshot, label)
	if err != nil {
		return "", err
	}
	meta := map[string]string{
		"seq": strconv.FormatUint(label.Seq, 10),
		"at":  label.At.UTC().Format(time.RFC3339Nano),
	}
	if label.Description != "" {
		meta["description"] = label.Description
	}
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: meta})
	if err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return info.Key, nil
}

// Load retrieves and decodes a stored snapshot. A missing reference fails
// with domain.ErrSnapshotNotFound before any decode is attempted.
func (s *Store) Load(ctx context.Context, ref string) (domain.Snapshot, domain.Label, error) {
	_, rc, err := s.blobs.Get(ctx, ref)
	if errors.Is(err, blob.ErrNotExist) {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, ref)
	}
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, err
	}
	payload, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: read %s: %v", domain.ErrDecode, ref, err)
	}
	if closeErr != nil {
		return domain.Snapshot{}, domain.Label{}, closeErr
	}
	return codec.Decode(payload)
}

// List enumerates stored snapshots ordered by name.
func (s *Store) List(ctx context.Context) ([]domain.ArchiveInfo, error) {
	blobs, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ArchiveInfo, 0, len(blobs))
	for _, info := range blobs {
		if strings.HasSuffix(info.Key, ".meta") {
			continue
		}
		entry := domain.ArchiveInfo{
			Name: strings.TrimSuffix(info.Key, codec.FileExt),
			Ref:  info.Key,
			Size: info.Size,
		}
		entry.Label = labelFromMetadata(info.Metadata)
		out = append(out, entry)
	}
	return out, nil
}

// Delete removes a stored snapshot by name.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	key, err := keyFor(name)
	if err != nil {
		return false, err
	}
	return s.blobs.Delete(ctx, key)
}

func labelFromMetadata(meta map[string]string) domain.Label {
	var label domain.Label
	if meta == nil {
		return label
	}
	if seq, err := strconv.ParseUint(meta["seq"], 10, 64); err == nil {
		label.Seq = seq
	}
	if at, err := time.Parse(time.RFC3339Nano, meta["at"]); err == nil {
		label.At = at
	}
	label.Description = meta["description"]
	return label
}

var _ domain.Archive = (*Store)(nil)
