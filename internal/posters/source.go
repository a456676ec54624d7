package posters

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is a location that holds poster images.
type Source interface {
	// List returns the file names directly inside the source in sorted
	// order. A missing location yields no names and no error.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether a file with exactly this name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// URL returns the public URL of a file in the source.
	URL(name string) string

	String() string
}

// DirSource serves posters from a local directory.
type DirSource struct {
	Dir       string
	URLPrefix string
}

func NewDirSource(dir, urlPrefix string) *DirSource {
	return &DirSource{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (d *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	// os.ReadDir already sorts by name.
	return names, nil
}

func (d *DirSource) Exists(ctx context.Context, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(d.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (d *DirSource) URL(name string) string {
	return d.URLPrefix + "/" + name
}

func (d *DirSource) String() string {
	return "dir:" + d.Dir
}

// ObjectLister is the part of object storage a BucketSource needs.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Bucket() string
}

// BucketSource serves posters stored as objects under a key prefix.
type BucketSource struct {
	store   ObjectLister
	prefix  string
	urlBase string
}

func NewBucketSource(store ObjectLister, prefix, urlBase string) *BucketSource {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &BucketSource{
		store:   store,
		prefix:  prefix,
		urlBase: strings.TrimRight(urlBase, "/"),
	}
}

// List returns the object names directly under the prefix; nested keys
// are ignored.
func (b *BucketSource) List(ctx context.Context) ([]string, error) {
	keys, err := b.store.List(ctx, b.prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, b.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *BucketSource) Exists(ctx context.Context, name string) (bool, error) {
	return b.store.Exists(ctx, b.prefix+name)
}

// URL maps the object key to urlBase, which points at the bucket root.
func (b *BucketSource) URL(name string) string {
	return b.urlBase + "/" + b.prefix + name
}

func (b *BucketSource) String() string {
	return "bucket:" + b.store.Bucket() + "/" + b.prefix
}
