package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/imrenagi/vod-upload-relay/catalog"
	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVideoCmd(cfg *config.Config, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newVideoCmd(cfg)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVideoPut(t *testing.T) {
	t.Run("a memory catalog entry is written through to the seed file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "videos.json")

		_, err := runVideoCmd(&cfg, "put", "--id", "7", "--title", "Intro",
			"--video-id", "v-123", "--channel-id", "ch1", "--watermark-area", "center")
		require.NoError(t, err)

		videos, err := readSeed(cfg.Catalog.SeedFile)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, int64(7), videos[0].ID)
		assert.Equal(t, "Intro", videos[0].Title)
		require.NotNil(t, videos[0].VideoID)
		assert.Equal(t, "v-123", *videos[0].VideoID)
		require.NotNil(t, videos[0].ChannelID)
		assert.Equal(t, "ch1", *videos[0].ChannelID)
		assert.Nil(t, videos[0].ChannelTitle)

		out, err := runVideoCmd(&cfg, "get", "--id", "7")
		require.NoError(t, err)
		assert.Contains(t, out, `"title": "Intro"`)
		assert.Contains(t, out, `"video_id": "v-123"`)
	})

	t.Run("existing seed entries are kept", func(t *testing.T) {
		cfg := config.Default()
		cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "videos.json")
		require.NoError(t, writeSeed(cfg.Catalog.SeedFile, []catalog.Video{{ID: 1, Title: "First"}}))

		_, err := runVideoCmd(&cfg, "put", "--id", "2", "--title", "Second")
		require.NoError(t, err)

		videos, err := readSeed(cfg.Catalog.SeedFile)
		require.NoError(t, err)
		require.Len(t, videos, 2)
		assert.Equal(t, "First", videos[0].Title)
		assert.Equal(t, "Second", videos[1].Title)
	})

	t.Run("a memory catalog without a seed file is refused", func(t *testing.T) {
		cfg := config.Default()

		_, err := runVideoCmd(&cfg, "put", "--id", "7", "--title", "Intro")
		assert.ErrorIs(t, err, errVolatileCatalog)
	})

	t.Run("a leveldb catalog keeps entries between runs", func(t *testing.T) {
		cfg := config.Default()
		cfg.Catalog.Backend = config.CatalogBackendLevelDB
		cfg.Catalog.LevelDBPath = filepath.Join(t.TempDir(), "catalog")

		_, err := runVideoCmd(&cfg, "put", "--id", "3", "--title", "Stored")
		require.NoError(t, err)

		out, err := runVideoCmd(&cfg, "get", "--id", "3")
		require.NoError(t, err)
		assert.Contains(t, out, `"title": "Stored"`)
	})
}
