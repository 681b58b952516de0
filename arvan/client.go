// Package arvan talks to the ArvanCloud VOD API: TUS file uploads on a
// channel, video creation from an uploaded file and channel discovery.
package arvan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var meter = otel.Meter("github.com/imrenagi/vod-upload-relay/arvan")

const (
	DefaultBaseURL = "https://napi.arvancloud.ir/vod/2.0"
	DefaultTimeout = 30 * time.Second

	TusResumableHeader   = "Tus-Resumable"
	TusVersion           = "1.0.0"
	UploadOffsetHeader   = "Upload-Offset"
	UploadLengthHeader   = "Upload-Length"
	UploadMetadataHeader = "Upload-Metadata"
	ContentTypeHeader    = "Content-Type"
	AuthorizationHeader  = "Authorization"

	OffsetOctetStream = "application/offset+octet-stream"

	// ConvertModeAuto and ThumbnailTime are fixed for every video the relay creates.
	ConvertModeAuto = "auto"
	ThumbnailTime   = 10
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Option func(*Options)

func WithBaseURL(u string) Option {
	return func(o *Options) {
		o.BaseURL = u
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithHTTPClient replaces the default instrumented client. The client's own
// timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

// Client holds the API key; it is attached to every outbound request and
// never leaves the relay.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	duration metric.Float64Histogram
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	o := Options{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   o.Timeout,
		}
	}

	duration, err := meter.Float64Histogram("arvan.client.duration",
		metric.WithDescription("Duration of calls to the ArvanCloud VOD API"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Client{
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		apiKey:   apiKey,
		http:     hc,
		duration: duration,
	}, nil
}

// CreateFile opens a TUS upload on the channel. The caller owns the response
// body; the upload location is in the Location header.
func (c *Client) CreateFile(ctx context.Context, channelID, uploadLength, uploadMetadata string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.channelURL(channelID, "files"), nil)
	if err != nil {
		return nil, err
	}
	c.tusHeaders(req)
	setIfPresent(req.Header, UploadLengthHeader, uploadLength)
	setIfPresent(req.Header, UploadMetadataHeader, uploadMetadata)
	return c.do(req, "create_file")
}

// Status asks the upload at location for its current offset.
func (c *Client) Status(ctx context.Context, location string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return nil, err
	}
	c.tusHeaders(req)
	return c.do(req, "status")
}

// Append streams body to the upload at location starting at offset.
// size may be -1 when the length is unknown.
func (c *Client) Append(ctx context.Context, location, offset string, body io.Reader, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, location, body)
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	c.tusHeaders(req)
	req.Header.Set(ContentTypeHeader, OffsetOctetStream)
	setIfPresent(req.Header, UploadOffsetHeader, offset)
	return c.do(req, "append")
}

// CreateVideoRequest is the body of POST /channels/{channel}/videos.
// Nil watermark fields are sent as JSON null.
type CreateVideoRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	FileID        string  `json:"file_id"`
	ConvertMode   string  `json:"convert_mode"`
	ThumbnailTime int     `json:"thumbnail_time"`
	WatermarkID   *string `json:"watermark_id"`
	WatermarkArea *string `json:"watermark_area"`
}

func (c *Client) CreateVideo(ctx context.Context, channelID string, in CreateVideoRequest) (*http.Response, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode create video request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.channelURL(channelID, "videos"), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthorizationHeader, c.apiKey)
	req.Header.Set(ContentTypeHeader, "application/json")
	return c.do(req, "create_video")
}

type Channel struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type channelsResponse struct {
	Data []Channel `json:"data"`
}

// Channels lists the channels visible to the API key.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/channels", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthorizationHeader, c.apiKey)

	resp, err := c.do(req, "channels")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var out channelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return out.Data, nil
}

// ChannelIDByTitle resolves a channel id from its title.
func (c *Client) ChannelIDByTitle(ctx context.Context, title string) (string, bool, error) {
	channels, err := c.Channels(ctx)
	if err != nil {
		return "", false, err
	}
	for _, ch := range channels {
		if ch.Title == title {
			return ch.ID, true, nil
		}
	}
	return "", false, nil
}

// StatusError is returned by helpers that expect a specific status code.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("arvan: unexpected status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)

	status := "error"
	if err == nil {
		status = fmt.Sprint(resp.StatusCode)
	}
	c.duration.Record(req.Context(), time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", status)))

	if err != nil {
		return nil, fmt.Errorf("arvan %s: %w", op, err)
	}
	return resp, nil
}

func (c *Client) tusHeaders(req *http.Request) {
	req.Header.Set(AuthorizationHeader, c.apiKey)
	req.Header.Set(TusResumableHeader, TusVersion)
}

func (c *Client) channelURL(channelID, resource string) string {
	return fmt.Sprintf("%s/channels/%s/%s", c.baseURL, url.PathEscape(channelID), resource)
}

func setIfPresent(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
