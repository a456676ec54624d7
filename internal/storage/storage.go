package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cinerate/apiserver/config"
)

var ErrBucketMissing = errors.New("bucket does not exist")

// ObjectStorage is the poster bucket contract shared by MinIO and GCS.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	// ListKeys returns every object key under prefix, nested keys included.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// Stat reports whether key exists.
	Stat(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
	Close() error
}

// Storage fronts an ObjectStorage backend for poster lookups.
type Storage struct {
	backend ObjectStorage
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// List returns the keys under prefix in sorted order. A bucket that does
// not exist lists as empty.
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.backend.ListKeys(ctx, prefix)
	if err != nil {
		if errors.Is(err, ErrBucketMissing) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether key is present. Keys that try to climb out of the
// bucket namespace never exist.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" || strings.Contains(key, "..") {
		return false, nil
	}
	ok, err := s.backend.Stat(ctx, key)
	if errors.Is(err, ErrBucketMissing) {
		return false, nil
	}
	return ok, err
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func (s *Storage) Close() error {
	return s.backend.Close()
}

// Open connects to the poster bucket selected by cfg.Posters.Backend.
func Open(ctx context.Context, cfg config.Config) (*Storage, error) {
	switch cfg.Posters.Backend {
	case config.PosterBackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return NewStorage(client), nil
	case config.PosterBackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		return NewStorage(client), nil
	default:
		return nil, fmt.Errorf("poster backend %q is not object storage", cfg.Posters.Backend)
	}
}
