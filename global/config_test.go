package global

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Load is once-guarded, so a single test exercises overrides and defaults
// together.
func TestLoad(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MONGODB_DATABASE", "vchat_test")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("NODE_ID", "7")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, "vchat_test", cfg.MongoDatabase)
	require.Equal(t, 30*time.Minute, cfg.TokenTTL)
	require.EqualValues(t, 7, cfg.NodeID)

	// untouched vars keep their defaults
	require.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	require.Empty(t, cfg.RedisAddr)
	require.Empty(t, cfg.NatsURL)
	require.NotEmpty(t, GetJwtSecret())

	opts := JWTOptions()
	require.Equal(t, 30*time.Minute, opts.TTL)
	require.Equal(t, "HS256", opts.Alg)

	// cached on second call
	again, err := Load()
	require.NoError(t, err)
	require.Same(t, cfg, again)
}
