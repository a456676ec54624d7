package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerate/apiserver/config"
)

type memBackend struct {
	objects map[string][]byte
	missing bool
	err     error
}

func (m *memBackend) EnsureBucket(ctx context.Context) error {
	m.missing = false
	return nil
}

func (m *memBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.missing {
		return nil, ErrBucketMissing
	}
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memBackend) Stat(ctx context.Context, key string) (bool, error) {
	if m.missing {
		return false, ErrBucketMissing
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memBackend) Bucket() string { return "posters" }
func (m *memBackend) Close() error   { return nil }

func TestStorage_List(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{objects: map[string][]byte{
		"covers/zodiac.jpg": nil,
		"covers/alien.png":  nil,
		"misc/readme.txt":   nil,
	}}
	s := NewStorage(backend)

	keys, err := s.List(ctx, "covers/")
	require.NoError(t, err)
	assert.Equal(t, []string{"covers/alien.png", "covers/zodiac.jpg"}, keys)

	backend.missing = true
	keys, err = s.List(ctx, "covers/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	backend.err = errors.New("denied")
	_, err = s.List(ctx, "")
	assert.EqualError(t, err, "denied")
}

func TestStorage_ExistsAndPut(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{objects: map[string][]byte{}, missing: true}
	s := NewStorage(backend)

	ok, err := s.Exists(ctx, "heat.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.Put(ctx, "heat.jpg", bytes.NewReader([]byte("img")), 3, "image/jpeg"))

	ok, err = s.Exists(ctx, "heat.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "../heat.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "posters", s.Bucket())
}

func TestOpen_LocalBackendIsNotObjectStorage(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Posters: config.PosterConfig{Backend: config.PosterBackendLocal}})
	assert.EqualError(t, err, `poster backend "local" is not object storage`)

	_, err = Open(context.Background(), config.Config{Posters: config.PosterConfig{Backend: config.PosterBackendMinio}})
	assert.EqualError(t, err, "minio: minio endpoint is required")
}
