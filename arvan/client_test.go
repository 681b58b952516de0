package arvan_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/imrenagi/vod-upload-relay/arvan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateFile(t *testing.T) {
	t.Run("The create file request carries the api key, the tus version and the declared length and metadata", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.Header().Set("Location", "https://upstream/vod/channels/ch1/files/xyz")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		c, err := NewClient("Apikey secret", WithBaseURL(srv.URL))
		require.NoError(t, err)

		resp, err := c.CreateFile(context.Background(), "ch1", "1024", "filename ZGVtby5tcDQ=")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "https://upstream/vod/channels/ch1/files/xyz", resp.Header.Get("Location"))
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, "/channels/ch1/files", got.URL.Path)
		assert.Equal(t, "Apikey secret", got.Header.Get(AuthorizationHeader))
		assert.Equal(t, TusVersion, got.Header.Get(TusResumableHeader))
		assert.Equal(t, "1024", got.Header.Get(UploadLengthHeader))
		assert.Equal(t, "filename ZGVtby5tcDQ=", got.Header.Get(UploadMetadataHeader))
	})

	t.Run("Absent metadata is not forwarded as an empty header", func(t *testing.T) {
		var present bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present = r.Header[UploadMetadataHeader]
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		c, err := NewClient("k", WithBaseURL(srv.URL))
		require.NoError(t, err)
		resp, err := c.CreateFile(context.Background(), "ch1", "10", "")
		require.NoError(t, err)
		resp.Body.Close()
		assert.False(t, present)
	})
}

func TestAppend(t *testing.T) {
	var (
		body   []byte
		header http.Header
		method string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		header = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.Header().Set(UploadOffsetHeader, "5")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Append(context.Background(), srv.URL+"/channels/ch1/files/xyz", "0", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "0", header.Get(UploadOffsetHeader))
	assert.Equal(t, OffsetOctetStream, header.Get(ContentTypeHeader))
	assert.Equal(t, TusVersion, header.Get(TusResumableHeader))
	assert.Equal(t, "k", header.Get(AuthorizationHeader))
	assert.Equal(t, "5", resp.Header.Get(UploadOffsetHeader))
}

func TestCreateVideo(t *testing.T) {
	t.Run("The payload carries title as description, the file id and the fixed conversion settings", func(t *testing.T) {
		var body string
		var path string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"v-1","status":"queued"}}`))
		}))
		defer srv.Close()

		c, err := NewClient("k", WithBaseURL(srv.URL))
		require.NoError(t, err)

		resp, err := c.CreateVideo(context.Background(), "ch1", CreateVideoRequest{
			Title:         "Demo",
			Description:   "Demo",
			FileID:        "xyz",
			ConvertMode:   ConvertModeAuto,
			ThumbnailTime: ThumbnailTime,
			WatermarkID:   strPtr("wm1"),
			WatermarkArea: strPtr("center"),
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "/channels/ch1/videos", path)
		assert.Equal(t, `{"title":"Demo","description":"Demo","file_id":"xyz","convert_mode":"auto","thumbnail_time":10,"watermark_id":"wm1","watermark_area":"center"}`, body)
	})

	t.Run("Missing watermark values are sent as null", func(t *testing.T) {
		var body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		c, err := NewClient("k", WithBaseURL(srv.URL))
		require.NoError(t, err)
		resp, err := c.CreateVideo(context.Background(), "ch1", CreateVideoRequest{Title: "T", Description: "T", FileID: "f"})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Contains(t, body, `"watermark_id":null`)
		assert.Contains(t, body, `"watermark_area":null`)
	})
}

func TestChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AuthorizationHeader) != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"unauthenticated"}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":"c-1","title":"News"},{"id":"c-2","title":"Sports"}]}`))
	}))
	defer srv.Close()

	t.Run("A channel id is resolved from its title", func(t *testing.T) {
		c, err := NewClient("k", WithBaseURL(srv.URL))
		require.NoError(t, err)

		id, ok, err := c.ChannelIDByTitle(context.Background(), "Sports")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "c-2", id)

		_, ok, err = c.ChannelIDByTitle(context.Background(), "Cooking")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("A non 200 listing is reported with its status", func(t *testing.T) {
		c, err := NewClient("wrong", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = c.Channels(context.Background())
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	})
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient("k", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Status(context.Background(), srv.URL+"/channels/ch1/files/xyz")
	assert.Error(t, err)
}
