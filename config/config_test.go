package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	unset(t, "SERVER_PORT", "DB_HOST", "DB_SSL", "POSTER_DIRS", "POSTER_BACKEND", "MQ_BACKEND", "TOKEN_TTL_HOURS")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, PosterBackendLocal, cfg.Posters.Backend)
	assert.Equal(t, []PosterDir{{Dir: "img", URLPrefix: "/img"}}, cfg.Posters.Dirs)
	assert.Equal(t, "", cfg.MQ.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("POSTER_BACKEND", "MinIO")
	t.Setenv("MQ_BACKEND", "rabbitmq")
	t.Setenv("RABBITMQ_DURABLE", "off")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, PosterBackendMinio, cfg.Posters.Backend)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.False(t, cfg.MQ.RabbitMQ.QueueDurable)
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("CINERATE_TEST_INT", "abc")
	assert.Equal(t, 7, getEnvInt("CINERATE_TEST_INT", 7))
}

func TestParsePosterDirs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []PosterDir
	}{
		{"empty", "", nil},
		{"single pair", "img=/img", []PosterDir{{Dir: "img", URLPrefix: "/img"}}},
		{
			"multiple with spaces",
			" public/uploads=/uploads/ , img=/img ",
			[]PosterDir{{Dir: "public/uploads", URLPrefix: "/uploads"}, {Dir: "img", URLPrefix: "/img"}},
		},
		{"bare dir", "static/posters", []PosterDir{{Dir: "static/posters", URLPrefix: "/posters"}}},
		{"skips blanks", ",,=x,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePosterDirs(tt.raw))
		})
	}
}

// unset clears keys for the duration of the test; t.Setenv restores them.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
