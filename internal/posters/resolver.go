package posters

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cinerate/apiserver/internal/metrics"
)

const (
	StrategyProbe    = "probe"
	StrategyIndex    = "index"
	StrategyIndexAlt = "index_alt"
	StrategyMiss     = "miss"
)

var whitespace = regexp.MustCompile(`\s+`)

// Resolver finds a poster URL for a movie title. It first probes the sources
// for literal file names derived from the title and falls back to the
// normalized index.
type Resolver struct {
	sources []Source
	logger  *slog.Logger
}

func NewResolver(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sources: sources, logger: logger}
}

func (r *Resolver) Sources() []Source {
	return r.sources
}

// Index scans every source once. Callers resolving many titles should build
// one index and pass it to each Resolve call.
func (r *Resolver) Index(ctx context.Context) Index {
	return BuildIndex(ctx, r.logger, r.sources...)
}

// Resolve returns the poster URL for title. Literal probes are tried in a
// fixed order (name pattern, then extension, then source) and the first
// existing file wins; otherwise idx is consulted by key and then alt key.
func (r *Resolver) Resolve(ctx context.Context, title string, idx Index) (string, bool) {
	if url, ok := r.probe(ctx, title); ok {
		metrics.PosterResolutions.WithLabelValues(StrategyProbe).Inc()
		return url, true
	}
	if url, ok := idx.Lookup(Normalize(title)); ok {
		metrics.PosterResolutions.WithLabelValues(StrategyIndex).Inc()
		return url, true
	}
	if url, ok := idx.Lookup(AltKey(title)); ok {
		metrics.PosterResolutions.WithLabelValues(StrategyIndexAlt).Inc()
		return url, true
	}
	metrics.PosterResolutions.WithLabelValues(StrategyMiss).Inc()
	return "", false
}

func (r *Resolver) probe(ctx context.Context, title string) (string, bool) {
	for _, base := range literalNames(title) {
		for _, ext := range Extensions {
			name := base + ext
			for _, src := range r.sources {
				ok, err := src.Exists(ctx, name)
				if err != nil {
					r.logger.DebugContext(ctx, "poster probe failed",
						slog.String("source", src.String()),
						slog.String("name", name),
						slog.String("error", err.Error()))
					continue
				}
				if ok {
					return src.URL(name), true
				}
			}
		}
	}
	return "", false
}

// literalNames derives the probe base names for a title in priority order.
// Candidates that could escape a source directory are dropped.
func literalNames(title string) []string {
	lower := strings.ToLower(title)
	candidates := []string{
		title,
		whitespace.ReplaceAllString(title, "_"),
		whitespace.ReplaceAllString(title, "-"),
		lower,
		whitespace.ReplaceAllString(lower, "_"),
		whitespace.ReplaceAllString(lower, "-"),
	}

	names := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" || strings.ContainsAny(c, `/\`) || strings.Contains(c, "..") {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		names = append(names, c)
	}
	return names
}
