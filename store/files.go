package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Uploader persists raw file bytes to object storage and returns a
// retrievable URL. Production wiring supplies the deployment's object
// storage SDK; tests substitute an in-memory stub.
type Uploader interface {
	Upload(ctx context.Context, key string, contentType string, data []byte) (url string, err error)
}

// InMemoryUploader is an Uploader that keeps every object in a map, for
// tests and local development. Not safe for concurrent use: Upload writes
// Objects without a lock.
type InMemoryUploader struct {
	Objects map[string][]byte
}

// NewInMemoryUploader builds an InMemoryUploader ready to use.
func NewInMemoryUploader() *InMemoryUploader {
	return &InMemoryUploader{Objects: make(map[string][]byte)}
}

func (u *InMemoryUploader) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if u.Objects == nil {
		u.Objects = make(map[string][]byte)
	}
	u.Objects[key] = data
	return "memory://" + key, nil
}

// FileRef is one file extracted from a run's input or output, ready for
// offloading.
type FileRef struct {
	ContentType string
	Data        []byte
}

// OffloadFiles uploads each file under a sha256-derived key so identical
// bytes always land at the same object, then returns the resulting URLs in
// input order. A content-addressed key makes re-uploads of the same file
// (e.g. retried runs) idempotent no-ops from the caller's perspective, even
// though InMemoryUploader and most object stores don't dedupe writes
// themselves.
func OffloadFiles(ctx context.Context, u Uploader, prefix string, files []FileRef) ([]string, error) {
	urls := make([]string, len(files))
	for i, f := range files {
		sum := sha256.Sum256(f.Data)
		key := fmt.Sprintf("%s/%s", prefix, hex.EncodeToString(sum[:]))
		url, err := u.Upload(ctx, key, f.ContentType, f.Data)
		if err != nil {
			return nil, fmt.Errorf("store: offload file %d: %w", i, err)
		}
		urls[i] = url
	}
	return urls, nil
}
