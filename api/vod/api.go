package vod

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/imrenagi/vod-upload-relay/relay"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	TusResumableHeader   = "Tus-Resumable"
	TusVersion           = "1.0.0"
	UploadOffsetHeader   = "Upload-Offset"
	UploadLengthHeader   = "Upload-Length"
	UploadMetadataHeader = "Upload-Metadata"
	UploadExpiresHeader  = "Upload-Expires"
	ContentTypeHeader    = "Content-Type"

	UploadProxyPath = "/video/upload_proxy/"
	UploadChunkPath = "/video/upload_chunk/"
	SaveVideoPath   = "/video/save_as_video/"

	ChannelQuery = "arvan_channel_id"
	VideoQuery   = "video_pk"

	DefaultCookieName = "location_key"
)

var SupportedTusVersion = []string{
	"1.0.0",
}

type Options struct {
	CookieName        string
	PublicURL         string
	ExposeUpstreamURL bool
	SecureCookie      bool
	MaxChunkSize      int64
}

type Option func(*Options)

func WithCookieName(name string) Option {
	return func(o *Options) {
		o.CookieName = name
	}
}

// WithPublicURL sets the externally visible base URL used to build chunk
// URLs. When empty it is derived from the request.
func WithPublicURL(u string) Option {
	return func(o *Options) {
		o.PublicURL = strings.TrimRight(u, "/")
	}
}

// WithExposeUpstreamURL controls whether upload_url in the initiate reply is
// the provider's URL or the relay's own chunk URL.
func WithExposeUpstreamURL(expose bool) Option {
	return func(o *Options) {
		o.ExposeUpstreamURL = expose
	}
}

func WithSecureCookie(secure bool) Option {
	return func(o *Options) {
		o.SecureCookie = secure
	}
}

// WithMaxChunkSize caps the body of a single PATCH. Zero disables the cap.
func WithMaxChunkSize(size int64) Option {
	return func(o *Options) {
		o.MaxChunkSize = size
	}
}

func NewController(svc *relay.Service, opts ...Option) Controller {
	o := Options{
		CookieName:        DefaultCookieName,
		ExposeUpstreamURL: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return Controller{
		svc:               svc,
		cookieName:        o.CookieName,
		publicURL:         o.PublicURL,
		exposeUpstreamURL: o.ExposeUpstreamURL,
		secureCookie:      o.SecureCookie,
		maxChunkSize:      o.MaxChunkSize,
	}
}

type Controller struct {
	svc               *relay.Service
	cookieName        string
	publicURL         string
	exposeUpstreamURL bool
	secureCookie      bool
	maxChunkSize      int64
}

// Routes mounts the relay endpoints on router.
func (c *Controller) Routes(router *mux.Router) {
	tus := router.NewRoute().Subrouter()
	tus.Use(TusResumableHeaderCheck, TusResumableHeaderInjections)
	tus.Handle(UploadProxyPath, otelhttp.WithRouteTag(UploadProxyPath, c.CreateUpload())).Methods(http.MethodPost)

	// The session is resolved before any protocol header is checked, so an
	// unknown token is always a 404.
	chunks := router.NewRoute().Subrouter()
	chunks.Use(c.SessionToken, c.RequireSession, TusResumableHeaderCheck, TusResumableHeaderInjections)
	chunks.Handle(UploadChunkPath, otelhttp.WithRouteTag(UploadChunkPath, c.GetOffset())).Methods(http.MethodHead)
	chunks.Handle(UploadChunkPath, otelhttp.WithRouteTag(UploadChunkPath, c.ResumeUpload())).Methods(http.MethodPatch)
	chunks.Handle(UploadChunkPath+"{token}", otelhttp.WithRouteTag(UploadChunkPath+"{token}", c.GetOffset())).Methods(http.MethodHead)
	chunks.Handle(UploadChunkPath+"{token}", otelhttp.WithRouteTag(UploadChunkPath+"{token}", c.ResumeUpload())).Methods(http.MethodPatch)

	finalize := router.NewRoute().Subrouter()
	finalize.Use(c.SessionToken)
	finalize.Handle(SaveVideoPath, otelhttp.WithRouteTag(SaveVideoPath, c.SaveVideo())).Methods(http.MethodPost)
}

func TusResumableHeaderCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tusVersion := r.Header.Get(TusResumableHeader)
		if tusVersion == "" {
			writeError(w, http.StatusBadRequest, "Tus-Resumable header is missing")
			return
		}

		supported := false
		for _, version := range SupportedTusVersion {
			if tusVersion == version {
				supported = true
				break
			}
		}
		if !supported {
			writeError(w, http.StatusPreconditionFailed, "Tus version not supported")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func TusResumableHeaderInjections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			w.Header().Set(TusResumableHeader, TusVersion)
		}
		next.ServeHTTP(w, r)
	})
}

type tokenKey struct{}

// SessionToken puts the upload session token in the request context. A token
// in the URL path wins over the session cookie.
func (c *Controller) SessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]
		if token == "" {
			if cookie, err := r.Cookie(c.cookieName); err == nil {
				token = cookie.Value
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	})
}

// RequireSession answers 404 when the token in the context names no live
// upload session.
func (c *Controller) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := c.svc.Lookup(r.Context(), TokenFromContext(r.Context())); err != nil {
			writeRelayError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

func (c *Controller) CreateUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res, err := c.svc.Initiate(ctx, relay.InitiateRequest{
			ChannelID:      r.URL.Query().Get(ChannelQuery),
			UploadLength:   r.Header.Get(UploadLengthHeader),
			UploadMetadata: r.Header.Get(UploadMetadataHeader),
		})
		if err != nil {
			writeRelayError(w, r, err)
			return
		}
		if res.Upload == nil {
			writeUpstream(w, r, res.Upstream)
			return
		}

		local := c.chunkURL(r, res.Upload.Token)
		uploadURL := local
		if c.exposeUpstreamURL {
			uploadURL = res.Upload.Location
		}

		http.SetCookie(w, &http.Cookie{
			Name:     c.cookieName,
			Value:    res.Upload.Token,
			Path:     "/",
			MaxAge:   int(c.svc.SessionTTL().Seconds()),
			HttpOnly: true,
			Secure:   c.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Location", local)
		w.Header().Set(UploadExpiresHeader, uploadExpiresAt(res.Upload.ExpiresAt))

		log.Ctx(ctx).Debug().Str("location", local).Msg("upload initiated")
		writeJSON(w, res.Upstream.StatusCode, uploadResponse{UploadURL: uploadURL})
	}
}

func (c *Controller) GetOffset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := c.svc.CheckOffset(r.Context(), TokenFromContext(r.Context()))
		if err != nil {
			writeRelayError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeUpstream(w, r, res)
	}
}

func (c *Controller) ResumeUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.Ctx(ctx)

		if c.maxChunkSize > 0 {
			if r.ContentLength > c.maxChunkSize {
				writeError(w, http.StatusRequestEntityTooLarge, "chunk exceeds the maximum size")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, c.maxChunkSize)
		}

		doneCh := make(chan struct{})
		defer close(doneCh)

		go func() {
			select {
			case <-doneCh:
				return
			case <-ctx.Done():
				logger.Debug().Err(ctx.Err()).Msg("chunk upload canceled by client")
				return
			}
		}()

		uploadOffset := r.Header.Get(UploadOffsetHeader)
		if _, err := strconv.ParseUint(uploadOffset, 10, 64); err != nil {
			logger.Debug().Err(err).
				Str("upload_offset", uploadOffset).
				Msg("Invalid Upload-Offset header: not a number")
			writeError(w, http.StatusBadRequest, "invalid Upload-Offset header: not a number")
			return
		}

		contentType := r.Header.Get(ContentTypeHeader)
		if contentType != "application/offset+octet-stream" {
			logger.Debug().Str("content_type", contentType).Msg("Invalid Content-Type")
			writeError(w, http.StatusUnsupportedMediaType, "invalid Content-Type header: expected application/offset+octet-stream")
			return
		}

		res, err := c.svc.AppendChunk(ctx, relay.AppendRequest{
			Token:         TokenFromContext(ctx),
			Offset:        uploadOffset,
			ContentLength: r.ContentLength,
			Body:          r.Body,
		})
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "chunk exceeds the maximum size")
			return
		}
		if err != nil {
			writeRelayError(w, r, err)
			return
		}
		writeUpstream(w, r, res)
	}
}

func (c *Controller) SaveVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		res, err := c.svc.Finalize(ctx, relay.FinalizeRequest{
			Token:     TokenFromContext(ctx),
			ChannelID: q.Get(ChannelQuery),
			VideoID:   q.Get(VideoQuery),
		})
		if err != nil {
			writeRelayError(w, r, err)
			return
		}
		writeUpstream(w, r, res)
	}
}

func (c *Controller) chunkURL(r *http.Request, token string) string {
	base := c.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return base + UploadChunkPath + token
}

func uploadExpiresAt(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
