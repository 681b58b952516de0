package relay_test

import (
	"net/http"
	"testing"

	. "github.com/imrenagi/vod-upload-relay/relay"
	"github.com/stretchr/testify/assert"
)

func TestFilterHopByHop(t *testing.T) {
	t.Run("hop-by-hop headers are removed regardless of case", func(t *testing.T) {
		h := http.Header{}
		h["connection"] = []string{"close"}
		h["KEEP-ALIVE"] = []string{"timeout=5"}
		h["Proxy-Authenticate"] = []string{"Basic"}
		h["proxy-Authorization"] = []string{"secret"}
		h["Te"] = []string{"trailers"}
		h["Trailers"] = []string{"Expires"}
		h["Transfer-Encoding"] = []string{"chunked"}
		h["UPGRADE"] = []string{"h2c"}

		assert.Empty(t, FilterHopByHop(h))
	})

	t.Run("end-to-end headers are preserved with all their values", func(t *testing.T) {
		h := http.Header{}
		h.Set("Upload-Offset", "512")
		h.Set("Tus-Resumable", "1.0.0")
		h.Add("Set-Cookie", "a=1")
		h.Add("Set-Cookie", "b=2")
		h.Set("Connection", "keep-alive")

		got := FilterHopByHop(h)
		assert.Equal(t, "512", got.Get("Upload-Offset"))
		assert.Equal(t, "1.0.0", got.Get("Tus-Resumable"))
		assert.Equal(t, []string{"a=1", "b=2"}, got.Values("Set-Cookie"))
		assert.Empty(t, got.Get("Connection"))
	})

	t.Run("the input header set is left untouched", func(t *testing.T) {
		h := http.Header{}
		h.Set("Connection", "close")
		h.Set("Upload-Offset", "0")

		got := FilterHopByHop(h)
		got.Set("Upload-Offset", "1")

		assert.Equal(t, "close", h.Get("Connection"))
		assert.Equal(t, "0", h.Get("Upload-Offset"))
	})

	t.Run("a nil header set yields an empty one", func(t *testing.T) {
		assert.Empty(t, FilterHopByHop(nil))
	})
}
