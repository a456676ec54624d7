package posters

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"
)

// Extensions are the poster file types recognised, in probe order.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var leadingArticle = regexp.MustCompile(`(?i)^\s*the\s+`)

// Normalize reduces a title or file name to its match key: lowercase,
// "&" spelled "and", and everything but ASCII letters and digits dropped.
// Separators (spaces, underscores, hyphens) disappear so "Dark_Knight",
// "dark-knight" and "Dark Knight" share a key.
func Normalize(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "&", "and")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AltKey is the match key of title with a leading "the " removed.
func AltKey(title string) string {
	return Normalize(leadingArticle.ReplaceAllString(title, ""))
}

// posterExt returns the lowercased extension of name if it is a poster
// type, or "".
func posterExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	for _, candidate := range Extensions {
		if ext == candidate {
			return ext
		}
	}
	return ""
}

// Index maps normalized base names to poster URLs.
type Index struct {
	entries map[string]string
}

// Len reports the number of distinct keys.
func (i Index) Len() int {
	return len(i.entries)
}

// Lookup returns the URL stored under an already normalized key.
func (i Index) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	url, ok := i.entries[key]
	return url, ok
}

// Match looks a title up by its key, then by its key without a leading
// "the". The full key wins when both are present.
func (i Index) Match(title string) (string, bool) {
	if url, ok := i.Lookup(Normalize(title)); ok {
		return url, true
	}
	return i.Lookup(AltKey(title))
}

// BuildIndex lists every source and indexes its poster files. Sources are
// read in order and a later file with the same key replaces an earlier one.
// A source that cannot be listed is logged and skipped; a missing directory
// or bucket simply contributes nothing.
func BuildIndex(ctx context.Context, logger *slog.Logger, sources ...Source) Index {
	idx := Index{entries: make(map[string]string)}
	for _, src := range sources {
		names, err := src.List(ctx)
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "failed to list poster source",
					slog.String("source", src.String()),
					slog.String("error", err.Error()))
			}
			continue
		}
		for _, name := range names {
			ext := posterExt(name)
			if ext == "" {
				continue
			}
			key := Normalize(name[:len(name)-len(ext)])
			if key == "" {
				continue
			}
			idx.entries[key] = src.URL(name)
		}
	}
	return idx
}
