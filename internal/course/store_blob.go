package course

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-grades/internal/storage"
)

const snapshotPrefix = "courses/"

type blobStore struct {
	blobs storage.BlobStore
}

// NewBlobStore returns a Store keeping snapshots as JSON objects under
// courses/<id>.json. Used for offline export and object-storage deployments.
func NewBlobStore(blobs storage.BlobStore) Store { return &blobStore{blobs: blobs} }

func snapshotKey(courseID string) string { return snapshotPrefix + courseID + ".json" }

func (b *blobStore) Put(ctx context.Context, snap Snapshot) error {
	if _, err := snap.Tree(); err != nil {
		return err
	}
	buf, err := snap.Encode()
	if err != nil {
		return err
	}
	_, err = b.blobs.Put(ctx, snapshotKey(snap.CourseID), bytes.NewReader(buf), int64(len(buf)), "application/json")
	return err
}

func (b *blobStore) Tree(ctx context.Context, courseID string) (*Tree, error) {
	rc, err := b.blobs.Get(ctx, snapshotKey(courseID))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer rc.Close()
	snap, err := DecodeSnapshot(rc)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", courseID, err)
	}
	return snap.Tree()
}

func (b *blobStore) List(ctx context.Context) ([]string, error) {
	keys, err := b.blobs.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimPrefix(k, snapshotPrefix)
		k = strings.TrimSuffix(k, ".json")
		if k != "" {
			out = append(out, k)
		}
	}
	return out, nil
}
