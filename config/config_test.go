package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environment(m map[string]string) env.Options {
	if m == nil {
		m = map[string]string{}
	}
	return env.Options{Environment: m}
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when nothing is set", func(t *testing.T) {
		c, err := load(environment(nil))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
		assert.Equal(t, 10*time.Minute, c.Session.TTL)
		assert.Equal(t, 30*time.Second, c.Arvan.Timeout)
		assert.True(t, c.Server.ExposeUpstreamURL)
	})

	t.Run("environment values override defaults", func(t *testing.T) {
		c, err := load(environment(map[string]string{
			"ARVAN_API_KEY":       "Apikey abc",
			"SESSION_BACKEND":     "redis",
			"SESSION_TTL":         "5m",
			"REDIS_DB":            "2",
			"EXPOSE_UPSTREAM_URL": "false",
			"MAX_CHUNK_SIZE":      "1048576",
			"CATALOG_BACKEND":     "dynamodb",
		}))
		require.NoError(t, err)
		assert.Equal(t, "Apikey abc", c.Arvan.APIKey)
		assert.Equal(t, SessionBackendRedis, c.Session.Backend)
		assert.Equal(t, 5*time.Minute, c.Session.TTL)
		assert.Equal(t, 2, c.Session.RedisDB)
		assert.False(t, c.Server.ExposeUpstreamURL)
		assert.Equal(t, int64(1<<20), c.Server.MaxChunkSize)
		assert.Equal(t, CatalogBackendDynamoDB, c.Catalog.Backend)
	})

	t.Run("malformed values are all reported", func(t *testing.T) {
		_, err := load(environment(map[string]string{
			"SESSION_TTL":   "ten minutes",
			"REDIS_DB":      "zero",
			"SECURE_COOKIE": "maybe",
		}))
		require.Error(t, err)
		var agg env.AggregateError
		require.ErrorAs(t, err, &agg)
		assert.Len(t, agg.Errors, 3)
	})

	t.Run("the process environment is read", func(t *testing.T) {
		t.Setenv("ARVAN_API_KEY", "from-env")
		c, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "from-env", c.Arvan.APIKey)
	})
}

func TestBindFlags(t *testing.T) {
	c := Default()
	c.Arvan.APIKey = "from-env"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--session-ttl=2m", "--catalog-backend=leveldb", "--expose-upstream-url=false"}))

	assert.Equal(t, "from-env", c.Arvan.APIKey, "unset flags keep the loaded value")
	assert.Equal(t, 2*time.Minute, c.Session.TTL)
	assert.Equal(t, CatalogBackendLevelDB, c.Catalog.Backend)
	assert.False(t, c.Server.ExposeUpstreamURL)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Arvan.APIKey = "key"
	assert.NoError(t, valid.Validate())

	t.Run("the api key is required", func(t *testing.T) {
		c := valid
		c.Arvan.APIKey = ""
		assert.ErrorIs(t, c.Validate(), ErrMissingAPIKey)
	})

	t.Run("unknown backends are rejected", func(t *testing.T) {
		c := valid
		c.Session.Backend = "memcached"
		assert.ErrorIs(t, c.Validate(), ErrUnknownBackend)

		c = valid
		c.Catalog.Backend = "postgres"
		assert.ErrorIs(t, c.Validate(), ErrUnknownBackend)
	})

	t.Run("durations must be positive", func(t *testing.T) {
		c := valid
		c.Session.TTL = 0
		c.Arvan.Timeout = -time.Second
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session ttl")
		assert.Contains(t, err.Error(), "arvan timeout")
	})
}
