package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerate/apiserver/config"
	"github.com/cinerate/apiserver/internal/posters"
)

func TestNew_RequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, nil)
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestPosterSources(t *testing.T) {
	ctx := context.Background()

	sources, closeFn, err := PosterSources(ctx, config.Config{Posters: config.PosterConfig{
		Backend: config.PosterBackendLocal,
		Dirs: []config.PosterDir{
			{Dir: "public/uploads", URLPrefix: "/uploads"},
			{Dir: "img", URLPrefix: "/img"},
		},
	}})
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	require.Len(t, sources, 2)
	assert.Equal(t, "dir:public/uploads", sources[0].String())
	assert.Equal(t, "/img/x.jpg", sources[1].URL("x.jpg"))
	assert.IsType(t, &posters.DirSource{}, sources[1])

	_, _, err = PosterSources(ctx, config.Config{Posters: config.PosterConfig{Backend: "ftp"}})
	assert.EqualError(t, err, `unsupported poster backend "ftp"`)

	_, _, err = PosterSources(ctx, config.Config{Posters: config.PosterConfig{Backend: config.PosterBackendGCS}})
	assert.EqualError(t, err, "open poster storage: gcs: gcs bucket is required")
}
