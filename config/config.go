// Package config loads relay settings from the environment. Command line
// flags bound with BindFlags override whatever the environment provided.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	CatalogBackendMemory   = "memory"
	CatalogBackendLevelDB  = "leveldb"
	CatalogBackendDynamoDB = "dynamodb"
)

type Config struct {
	Server    ServerConfig
	Arvan     ArvanConfig
	Session   SessionConfig
	Catalog   CatalogConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Addr              string `env:"RELAY_ADDR"`
	LogLevel          string `env:"LOG_LEVEL"`
	LogFormat         string `env:"LOG_FORMAT"`
	PublicURL         string `env:"PUBLIC_URL"`
	ExposeUpstreamURL bool   `env:"EXPOSE_UPSTREAM_URL"`
	SecureCookie      bool   `env:"SECURE_COOKIE"`
	MaxChunkSize      int64  `env:"MAX_CHUNK_SIZE"`
}

type ArvanConfig struct {
	APIKey  string        `env:"ARVAN_API_KEY"`
	BaseURL string        `env:"ARVAN_BASE_URL"`
	Timeout time.Duration `env:"ARVAN_TIMEOUT"`
}

type SessionConfig struct {
	Backend       string        `env:"SESSION_BACKEND"`
	TTL           time.Duration `env:"SESSION_TTL"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"`
}

type CatalogConfig struct {
	Backend       string `env:"CATALOG_BACKEND"`
	SeedFile      string `env:"CATALOG_SEED_FILE"`
	LevelDBPath   string `env:"LEVELDB_PATH"`
	DynamoDBTable string `env:"DYNAMODB_TABLE"`
	AWSRegion     string `env:"AWS_REGION"`
}

type TelemetryConfig struct {
	ServiceName  string `env:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			LogLevel:          "info",
			LogFormat:         "console",
			ExposeUpstreamURL: true,
		},
		Arvan: ArvanConfig{
			BaseURL: "https://napi.arvancloud.ir/vod/2.0",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Backend:       SessionBackendMemory,
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
			RedisAddr:     "localhost:6379",
		},
		Catalog: CatalogConfig{
			Backend:       CatalogBackendMemory,
			LevelDBPath:   "data/catalog",
			DynamoDBTable: "videos",
			AWSRegion:     "us-east-1",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "vod-upload-relay",
		},
	}
}

// Load returns the defaults overridden by any variable set in the
// environment. Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (Config, error) {
	c := Default()
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, err
	}
	return c, nil
}

// BindFlags registers one flag per setting, defaulting to the current value.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "address the relay listens on")
	fs.StringVar(&c.Server.LogLevel, "log-level", c.Server.LogLevel, "log level")
	fs.StringVar(&c.Server.LogFormat, "log-format", c.Server.LogFormat, "log format: console or json")
	fs.StringVar(&c.Server.PublicURL, "public-url", c.Server.PublicURL, "externally visible base URL of the relay")
	fs.BoolVar(&c.Server.ExposeUpstreamURL, "expose-upstream-url", c.Server.ExposeUpstreamURL, "return the provider upload URL as upload_url")
	fs.BoolVar(&c.Server.SecureCookie, "secure-cookie", c.Server.SecureCookie, "mark the session cookie Secure")
	fs.Int64Var(&c.Server.MaxChunkSize, "max-chunk-size", c.Server.MaxChunkSize, "maximum PATCH body size in bytes, 0 for no limit")

	fs.StringVar(&c.Arvan.APIKey, "arvan-api-key", c.Arvan.APIKey, "ArvanCloud VOD API key")
	fs.StringVar(&c.Arvan.BaseURL, "arvan-base-url", c.Arvan.BaseURL, "ArvanCloud VOD API base URL")
	fs.DurationVar(&c.Arvan.Timeout, "arvan-timeout", c.Arvan.Timeout, "timeout of a single upstream call")

	fs.StringVar(&c.Session.Backend, "session-backend", c.Session.Backend, "session store: memory or redis")
	fs.DurationVar(&c.Session.TTL, "session-ttl", c.Session.TTL, "lifetime of an upload session")
	fs.DurationVar(&c.Session.SweepInterval, "session-sweep-interval", c.Session.SweepInterval, "how often the memory store purges expired sessions")
	fs.StringVar(&c.Session.RedisAddr, "redis-addr", c.Session.RedisAddr, "redis address")
	fs.StringVar(&c.Session.RedisPassword, "redis-password", c.Session.RedisPassword, "redis password")
	fs.IntVar(&c.Session.RedisDB, "redis-db", c.Session.RedisDB, "redis database")

	fs.StringVar(&c.Catalog.Backend, "catalog-backend", c.Catalog.Backend, "video catalog: memory, leveldb or dynamodb")
	fs.StringVar(&c.Catalog.SeedFile, "catalog-seed-file", c.Catalog.SeedFile, "JSON array of videos loaded into the memory catalog")
	fs.StringVar(&c.Catalog.LevelDBPath, "leveldb-path", c.Catalog.LevelDBPath, "leveldb catalog directory")
	fs.StringVar(&c.Catalog.DynamoDBTable, "dynamodb-table", c.Catalog.DynamoDBTable, "dynamodb catalog table")
	fs.StringVar(&c.Catalog.AWSRegion, "aws-region", c.Catalog.AWSRegion, "aws region of the dynamodb table")

	fs.StringVar(&c.Telemetry.ServiceName, "service-name", c.Telemetry.ServiceName, "service name reported to telemetry backends")
	fs.StringVar(&c.Telemetry.OTLPEndpoint, "otlp-endpoint", c.Telemetry.OTLPEndpoint, "OTLP gRPC collector endpoint, empty to disable tracing")
}

var (
	ErrMissingAPIKey  = errors.New("arvan api key is required")
	ErrUnknownBackend = errors.New("unknown backend")
)

func (c Config) Validate() error {
	var errs []error
	if c.Arvan.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.Arvan.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("arvan timeout must be positive, got %s", c.Arvan.Timeout))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive, got %s", c.Session.TTL))
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("session %w %q", ErrUnknownBackend, c.Session.Backend))
	}
	switch c.Catalog.Backend {
	case CatalogBackendMemory, CatalogBackendLevelDB, CatalogBackendDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("catalog %w %q", ErrUnknownBackend, c.Catalog.Backend))
	}
	if c.Server.MaxChunkSize < 0 {
		errs = append(errs, fmt.Errorf("max chunk size must not be negative"))
	}
	return errors.Join(errs...)
}
