// Package relay bridges browser TUS uploads to the VOD provider. A client
// only ever holds an opaque session token; the upstream upload URL and the
// API key stay on the server.
package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/imrenagi/vod-upload-relay/arvan"
	"github.com/imrenagi/vod-upload-relay/catalog"
	"github.com/imrenagi/vod-upload-relay/session"
	"github.com/rs/zerolog/log"
)

// Upstream is the provider API the relay forwards to. Each call returns the
// raw response; a non-nil error means the call could not be completed.
type Upstream interface {
	CreateFile(ctx context.Context, channelID, uploadLength, uploadMetadata string) (*http.Response, error)
	Status(ctx context.Context, location string) (*http.Response, error)
	Append(ctx context.Context, location, offset string, body io.Reader, size int64) (*http.Response, error)
	CreateVideo(ctx context.Context, channelID string, req arvan.CreateVideoRequest) (*http.Response, error)
}

// Response is an upstream reply ready to be relayed to the client.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Options struct {
	SessionTTL time.Duration
	NewToken   func() string
}

type Option func(*Options)

func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.SessionTTL = ttl
	}
}

func WithTokenGenerator(fn func() string) Option {
	return func(o *Options) {
		o.NewToken = fn
	}
}

type Service struct {
	sessions session.Store
	upstream Upstream
	videos   catalog.Finder
	ttl      time.Duration
	newToken func() string
}

func NewService(sessions session.Store, upstream Upstream, videos catalog.Finder, opts ...Option) *Service {
	o := Options{
		SessionTTL: session.DefaultTTL,
		NewToken:   session.NewToken,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		sessions: sessions,
		upstream: upstream,
		videos:   videos,
		ttl:      o.SessionTTL,
		newToken: o.NewToken,
	}
}

func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

type InitiateRequest struct {
	ChannelID      string
	UploadLength   string
	UploadMetadata string
}

// Upload is a freshly created session.
type Upload struct {
	Token     string
	Location  string
	ExpiresAt time.Time
}

// InitiateResult carries the upstream reply. Upload is nil when the provider
// refused to create the file; the reply is then relayed as is.
type InitiateResult struct {
	Upload   *Upload
	Upstream Response
}

func (s *Service) Initiate(ctx context.Context, in InitiateRequest) (InitiateResult, error) {
	logger := log.Ctx(ctx)
	if in.ChannelID == "" {
		return InitiateResult{}, badRequest("channel_id is required")
	}

	resp, err := s.upstream.CreateFile(ctx, in.ChannelID, in.UploadLength, in.UploadMetadata)
	if err != nil {
		return InitiateResult{}, callFailed(ctx, "create file", err)
	}
	relayed, err := readResponse(resp)
	if err != nil {
		return InitiateResult{}, callFailed(ctx, "create file", err)
	}

	if !successful(relayed.StatusCode) {
		logger.Info().Int("status", relayed.StatusCode).Str("channel_id", in.ChannelID).
			Msg("upstream refused to create file")
		return InitiateResult{Upstream: relayed}, nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		logger.Error().Int("status", relayed.StatusCode).Msg("create file response has no Location header")
		return InitiateResult{}, upstreamError("upstream did not return an upload location")
	}

	token := s.newToken()
	if err := s.sessions.Put(ctx, token, location, s.ttl); err != nil {
		return InitiateResult{}, internal("unable to store upload session", err)
	}

	logger.Debug().Str("channel_id", in.ChannelID).
		Str("upload_length", in.UploadLength).
		Msg("upload session created")

	return InitiateResult{
		Upload: &Upload{
			Token:     token,
			Location:  location,
			ExpiresAt: time.Now().Add(s.ttl),
		},
		Upstream: relayed,
	}, nil
}

// CheckOffset relays a TUS HEAD to the upload behind token.
func (s *Service) CheckOffset(ctx context.Context, token string) (Response, error) {
	location, err := s.resolve(ctx, token)
	if err != nil {
		return Response{}, err
	}

	resp, err := s.upstream.Status(ctx, location)
	if err != nil {
		return Response{}, callFailed(ctx, "status", err)
	}
	resp.Body.Close()

	return Response{
		StatusCode: resp.StatusCode,
		Header:     FilterHopByHop(resp.Header),
	}, nil
}

type AppendRequest struct {
	Token         string
	Offset        string
	ContentLength int64
	Body          io.Reader
}

// AppendChunk relays a TUS PATCH. The body is streamed, so a client that
// goes away cancels the upstream call through ctx.
func (s *Service) AppendChunk(ctx context.Context, in AppendRequest) (Response, error) {
	location, err := s.resolve(ctx, in.Token)
	if err != nil {
		return Response{}, err
	}

	resp, err := s.upstream.Append(ctx, location, in.Offset, in.Body, in.ContentLength)
	if err != nil {
		return Response{}, callFailed(ctx, "append", err)
	}
	relayed, err := readResponse(resp)
	if err != nil {
		return Response{}, callFailed(ctx, "append", err)
	}

	log.Ctx(ctx).Debug().
		Str("upload_offset", in.Offset).
		Str("new_offset", relayed.Header.Get(arvan.UploadOffsetHeader)).
		Int("status", relayed.StatusCode).
		Msg("chunk relayed")
	return relayed, nil
}

type FinalizeRequest struct {
	Token     string
	ChannelID string
	VideoID   string
}

// Finalize turns the completed upload behind token into a video on the
// channel, titled after the local catalog entry.
func (s *Service) Finalize(ctx context.Context, in FinalizeRequest) (Response, error) {
	logger := log.Ctx(ctx)
	if in.ChannelID == "" {
		return Response{}, badRequest("channel_id is required")
	}
	if in.VideoID == "" {
		return Response{}, badRequest("video_pk is required")
	}
	if in.Token == "" {
		return Response{}, badRequest("upload session is required")
	}
	videoID, err := strconv.ParseInt(in.VideoID, 10, 64)
	if err != nil {
		return Response{}, badRequest("video_pk must be a number")
	}

	location, err := s.resolve(ctx, in.Token)
	if err != nil {
		return Response{}, err
	}

	fileID, err := FileIDFromLocation(location)
	if err != nil {
		logger.Warn().Str("location", location).Msg("stored upload location has no file id")
		return Response{}, &Error{Kind: KindBadRequest, Message: ErrMalformedFileID.Error(), Err: err}
	}

	video, ok, err := s.videos.FindVideo(ctx, videoID)
	if err != nil {
		return Response{}, internal("unable to load video", err)
	}
	if !ok {
		return Response{}, notFound("video not found")
	}

	resp, err := s.upstream.CreateVideo(ctx, in.ChannelID, arvan.CreateVideoRequest{
		Title:         video.Title,
		Description:   video.Title,
		FileID:        fileID,
		ConvertMode:   arvan.ConvertModeAuto,
		ThumbnailTime: arvan.ThumbnailTime,
		WatermarkID:   video.Watermark,
		WatermarkArea: video.WatermarkArea,
	})
	if err != nil {
		return Response{}, callFailed(ctx, "create video", err)
	}
	relayed, err := readResponse(resp)
	if err != nil {
		return Response{}, callFailed(ctx, "create video", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if ct := relayed.Header.Get("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	relayed.Header = header

	logger.Info().Int64("video_pk", videoID).
		Str("file_id", fileID).
		Int("status", relayed.StatusCode).
		Msg("video creation relayed")
	return relayed, nil
}

// Lookup reports whether token names a live upload session.
func (s *Service) Lookup(ctx context.Context, token string) error {
	_, err := s.resolve(ctx, token)
	return err
}

func (s *Service) resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", &Error{Kind: KindNotFound, Message: ErrSessionNotFound.Error(), Err: ErrSessionNotFound}
	}
	location, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		return "", internal("unable to load upload session", err)
	}
	if !ok {
		log.Ctx(ctx).Debug().Msg("upload session not found or expired")
		return "", &Error{Kind: KindNotFound, Message: ErrSessionNotFound.Error(), Err: ErrSessionNotFound}
	}
	return location, nil
}

// callFailed classifies a failed upstream call. A call aborted because the
// client went away says nothing about the provider's health.
func callFailed(ctx context.Context, call string, err error) error {
	if ctx.Err() != nil {
		log.Ctx(ctx).Info().Err(ctx.Err()).Str("call", call).Msg("upstream call canceled by client")
		return canceled(ctx.Err())
	}
	log.Ctx(ctx).Warn().Err(err).Str("call", call).Msg("upstream call failed")
	return unreachable(err)
}

func readResponse(resp *http.Response) (Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return Response{}, err
	}
	return Response{
		StatusCode: resp.StatusCode,
		Header:     FilterHopByHop(resp.Header),
		Body:       body,
	}, nil
}

func successful(code int) bool {
	return code >= 200 && code < 300
}
