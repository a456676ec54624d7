package posters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerate/apiserver/internal/metrics"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Dark Knight", "thedarkknight"},
		{"dark_knight", "darkknight"},
		{"Dark-Knight", "darkknight"},
		{"Fast & Furious", "fastandfurious"},
		{"WALL·E", "walle"},
		{"Se7en!", "se7en"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestAltKey(t *testing.T) {
	assert.Equal(t, "darkknight", AltKey("The Dark Knight"))
	assert.Equal(t, "darkknight", AltKey("  the   Dark Knight"))
	assert.Equal(t, "theory", AltKey("Theory"))
	assert.Equal(t, "heat", AltKey("Heat"))
}

func TestLiteralNames(t *testing.T) {
	assert.Equal(t,
		[]string{"Big Fish", "Big_Fish", "Big-Fish", "big fish", "big_fish", "big-fish"},
		literalNames("Big Fish"))

	assert.Equal(t, []string{"heat"}, literalNames("heat"))
	assert.Empty(t, literalNames("../etc/passwd"))
	assert.Empty(t, literalNames(`a\b`))
	assert.Empty(t, literalNames(""))
}

func TestBuildIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("missing directory is empty", func(t *testing.T) {
		idx := BuildIndex(ctx, nil, NewDirSource(filepath.Join(t.TempDir(), "nope"), "/img"))
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("only poster extensions case insensitive", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "Heat.JPG", "notes.txt", "alien.WebP", ".jpg")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

		idx := BuildIndex(ctx, nil, NewDirSource(dir, "/img/"))
		assert.Equal(t, 2, idx.Len())

		url, ok := idx.Lookup("heat")
		require.True(t, ok)
		assert.Equal(t, "/img/Heat.JPG", url)

		url, ok = idx.Lookup("alien")
		require.True(t, ok)
		assert.Equal(t, "/img/alien.WebP", url)

		_, ok = idx.Lookup("")
		assert.False(t, ok)
	})

	t.Run("later source wins", func(t *testing.T) {
		first, second := t.TempDir(), t.TempDir()
		writeFiles(t, first, "heat.jpg")
		writeFiles(t, second, "Heat.png")

		idx := BuildIndex(ctx, nil, NewDirSource(first, "/a"), NewDirSource(second, "/b"))
		url, ok := idx.Match("Heat")
		require.True(t, ok)
		assert.Equal(t, "/b/Heat.png", url)
	})

	t.Run("failing source is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "heat.jpg")
		broken := NewBucketSource(&fakeBucket{listErr: errors.New("boom")}, "", "/cdn")

		idx := BuildIndex(ctx, nil, broken, NewDirSource(dir, "/img"))
		assert.Equal(t, 1, idx.Len())
	})
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("alt key strips leading article", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "dark-knight.jpg")
		r := NewResolver(nil, NewDirSource(dir, "/img"))

		before := testutil.ToFloat64(metrics.PosterResolutions.WithLabelValues(StrategyIndexAlt))
		url, ok := r.Resolve(ctx, "The Dark Knight", r.Index(ctx))
		require.True(t, ok)
		assert.Equal(t, "/img/dark-knight.jpg", url)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.PosterResolutions.WithLabelValues(StrategyIndexAlt)))
	})

	t.Run("full key beats alt key", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "dark-knight.jpg", "TheDarkKnight.png")
		r := NewResolver(nil, NewDirSource(dir, "/img"))

		url, ok := r.Resolve(ctx, "The  Dark Knight", r.Index(ctx))
		require.True(t, ok)
		assert.Equal(t, "/img/TheDarkKnight.png", url)
	})

	t.Run("literal probe beats index", func(t *testing.T) {
		dir := t.TempDir()
		// Both share the key "inception"; the index keeps the later name.
		writeFiles(t, dir, "Inception.png", "in-ception.jpg")
		r := NewResolver(nil, NewDirSource(dir, "/img"))
		idx := r.Index(ctx)

		indexed, _ := idx.Lookup("inception")
		assert.Equal(t, "/img/in-ception.jpg", indexed)

		url, ok := r.Resolve(ctx, "Inception", idx)
		require.True(t, ok)
		assert.Equal(t, "/img/Inception.png", url)
	})

	t.Run("probe order is pattern then extension then source", func(t *testing.T) {
		first, second := t.TempDir(), t.TempDir()
		writeFiles(t, first, "big_fish.jpg", "Big Fish.png")
		writeFiles(t, second, "Big Fish.jpg")
		r := NewResolver(nil, NewDirSource(first, "/a"), NewDirSource(second, "/b"))

		url, ok := r.Resolve(ctx, "Big Fish", Index{})
		require.True(t, ok)
		assert.Equal(t, "/b/Big Fish.jpg", url)
	})

	t.Run("ampersand spelled out", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "fast-and-furious.webp")
		r := NewResolver(nil, NewDirSource(dir, "/img"))

		url, ok := r.Resolve(ctx, "Fast & Furious", r.Index(ctx))
		require.True(t, ok)
		assert.Equal(t, "/img/fast-and-furious.webp", url)
	})

	t.Run("no match", func(t *testing.T) {
		r := NewResolver(nil, NewDirSource(filepath.Join(t.TempDir(), "missing"), "/img"))
		_, ok := r.Resolve(ctx, "Heat", r.Index(ctx))
		assert.False(t, ok)
	})

	t.Run("deterministic", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "heat.jpg", "HEAT.gif", "h-e-a-t.png")
		r := NewResolver(nil, NewDirSource(dir, "/img"))

		first, ok := r.Resolve(ctx, "H E A T", r.Index(ctx))
		require.True(t, ok)
		for i := 0; i < 5; i++ {
			again, _ := r.Resolve(ctx, "H E A T", r.Index(ctx))
			assert.Equal(t, first, again)
		}
	})
}

func TestBucketSource(t *testing.T) {
	ctx := context.Background()
	bucket := &fakeBucket{
		name: "posters",
		keys: []string{
			"covers/heat.jpg",
			"covers/The_Matrix.PNG",
			"covers/thumbs/heat.jpg",
			"other/alien.jpg",
		},
	}
	src := NewBucketSource(bucket, "/covers/", "https://cdn.example.com/posters/")

	names, err := src.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"The_Matrix.PNG", "heat.jpg"}, names)
	assert.Equal(t, "bucket:posters/covers/", src.String())

	ok, err := src.Exists(ctx, "heat.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	r := NewResolver(nil, src)
	url, found := r.Resolve(ctx, "Heat", Index{})
	require.True(t, found)
	assert.Equal(t, "https://cdn.example.com/posters/covers/heat.jpg", url)

	url, found = r.Resolve(ctx, "The Matrix", r.Index(ctx))
	require.True(t, found)
	assert.Equal(t, "https://cdn.example.com/posters/covers/The_Matrix.PNG", url)

	rootOnly := NewBucketSource(bucket, "", "https://cdn.example.com/posters")
	assert.Equal(t, "https://cdn.example.com/posters/heat.jpg", rootOnly.URL("heat.jpg"))
}

type fakeBucket struct {
	name    string
	keys    []string
	listErr error
}

func (f *fakeBucket) List(ctx context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeBucket) Exists(ctx context.Context, key string) (bool, error) {
	for _, k := range f.keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBucket) Bucket() string {
	return f.name
}
