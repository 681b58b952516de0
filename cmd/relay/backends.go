package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/imrenagi/vod-upload-relay/arvan"
	"github.com/imrenagi/vod-upload-relay/catalog"
	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/imrenagi/vod-upload-relay/server"
	"github.com/imrenagi/vod-upload-relay/session"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type sessionBackend struct {
	session.Store
	redis *session.RedisStore
}

func (b sessionBackend) pingers() []server.Pinger {
	if b.redis == nil {
		return nil
	}
	return []server.Pinger{b.redis}
}

func (b sessionBackend) Close() error {
	if b.redis == nil {
		return nil
	}
	return b.redis.Close()
}

func openSessions(ctx context.Context, cfg config.SessionConfig) (sessionBackend, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		store := session.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return sessionBackend{}, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		return sessionBackend{Store: store, redis: store}, nil
	default:
		store := session.NewMemoryStore()
		if cfg.SweepInterval > 0 {
			go store.Run(ctx, cfg.SweepInterval)
		}
		return sessionBackend{Store: store}, nil
	}
}

type catalogBackend struct {
	catalog.Store
	close func() error
	flush func() error
}

var errVolatileCatalog = errors.New("memory catalog is not persisted without --catalog-seed-file")

// Flush writes pending changes of a file backed memory catalog. Other
// backends persist on every save.
func (b catalogBackend) Flush() error {
	if b.flush == nil {
		return nil
	}
	return b.flush()
}

func (b catalogBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig) (catalogBackend, error) {
	switch cfg.Backend {
	case config.CatalogBackendLevelDB:
		store, err := catalog.OpenLevelDBStore(cfg.LevelDBPath)
		if err != nil {
			return catalogBackend{}, err
		}
		return catalogBackend{Store: store, close: store.Close}, nil
	case config.CatalogBackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return catalogBackend{}, fmt.Errorf("load aws config: %w", err)
		}
		return catalogBackend{Store: catalog.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)}, nil
	case config.CatalogBackendMemory:
		videos, err := readSeed(cfg.SeedFile)
		if err != nil {
			return catalogBackend{}, err
		}
		log.Debug().Int("videos", len(videos)).Msg("memory catalog seeded")
		store := catalog.NewMemoryStore(videos...)
		backend := catalogBackend{Store: store}
		if cfg.SeedFile != "" {
			backend.flush = func() error { return writeSeed(cfg.SeedFile, store.Videos()) }
		}
		return backend, nil
	default:
		return catalogBackend{}, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

func readSeed(path string) ([]catalog.Video, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("catalog seed file does not exist, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var videos []catalog.Video
	if err := json.Unmarshal(b, &videos); err != nil {
		return nil, fmt.Errorf("decode catalog seed %s: %w", path, err)
	}
	for _, v := range videos {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("catalog seed video %d: %w", v.ID, err)
		}
	}
	return videos, nil
}

func writeSeed(path string, videos []catalog.Video) error {
	b, err := json.MarshalIndent(videos, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog seed: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write catalog seed: %w", err)
	}
	return nil
}

func newArvanClient(cfg config.ArvanConfig) (*arvan.Client, error) {
	return arvan.NewClient(cfg.APIKey,
		arvan.WithBaseURL(cfg.BaseURL),
		arvan.WithTimeout(cfg.Timeout))
}
