package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/eventials/go-tus"
	"github.com/imrenagi/vod-upload-relay/api/vod"
	"github.com/imrenagi/vod-upload-relay/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	relayURL   string
	channelID  string
	videoID    int64
	file       string
	chunkSize  int64
	stateDir   string
	cookieName string
	logLevel   string
}

func main() {
	var o options

	cmd := &cobra.Command{
		Use:          "relay-client",
		Short:        "Upload a file through the VOD relay and attach it to a catalog video",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return server.InitializeLogger(o.logLevel, "console")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.relayURL, "relay", "http://localhost:8080", "relay base URL")
	cmd.Flags().StringVar(&o.channelID, "channel", "", "VOD channel id")
	cmd.Flags().Int64Var(&o.videoID, "video", 0, "catalog video id the upload is saved as")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "file to upload")
	cmd.Flags().Int64Var(&o.chunkSize, "chunk-size", 8*1024*1024, "bytes sent per PATCH")
	cmd.Flags().StringVar(&o.stateDir, "state-dir", "", "directory remembering unfinished uploads, enables resume")
	cmd.Flags().StringVar(&o.cookieName, "cookie-name", vod.DefaultCookieName, "session cookie name used by the relay")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "info", "log level")
	cmd.MarkFlagRequired("channel")
	cmd.MarkFlagRequired("video")
	cmd.MarkFlagRequired("file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, o options) error {
	f, err := os.Open(o.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", o.file, err)
	}
	defer f.Close()

	cfg := tus.DefaultConfig()
	cfg.ChunkSize = o.chunkSize
	if o.stateDir != "" {
		store, err := openUploadStore(o.stateDir)
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.Resume = true
		cfg.Store = store
	}

	base := strings.TrimRight(o.relayURL, "/")
	createURL := base + vod.UploadProxyPath + "?" + url.Values{vod.ChannelQuery: {o.channelID}}.Encode()

	client, err := tus.NewClient(createURL, cfg)
	if err != nil {
		return fmt.Errorf("create tus client: %w", err)
	}

	upload, err := tus.NewUploadFromFile(f)
	if err != nil {
		return fmt.Errorf("prepare upload: %w", err)
	}

	var uploader *tus.Uploader
	if cfg.Resume {
		uploader, err = client.CreateOrResumeUpload(upload)
	} else {
		uploader, err = client.CreateUpload(upload)
	}
	if err != nil {
		return fmt.Errorf("initiate upload: %w", err)
	}
	log.Info().Str("url", uploader.Url()).Int64("offset", uploader.Offset()).Msg("upload session ready")

	progress := make(chan tus.Upload)
	uploader.NotifyUploadProgress(progress)
	go func() {
		for u := range progress {
			log.Info().Int64("progress", u.Progress()).Int64("offset", u.Offset()).Msg("chunk uploaded")
		}
	}()
	go func() {
		<-ctx.Done()
		uploader.Abort()
	}()

	start := time.Now()
	if err := uploader.Upload(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if uploader.IsAborted() {
		return ctx.Err()
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("upload complete")
	if cfg.Resume {
		cfg.Store.Delete(upload.Fingerprint)
	}

	return finalize(ctx, out, base, o, path.Base(uploader.Url()))
}

func finalize(ctx context.Context, out io.Writer, base string, o options, token string) error {
	saveURL := base + vod.SaveVideoPath + "?" + url.Values{
		vod.ChannelQuery: {o.channelID},
		vod.VideoQuery:   {fmt.Sprint(o.videoID)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, saveURL, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: o.cookieName, Value: token})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read save video response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("save video: status %d: %s", resp.StatusCode, body)
	}
	log.Info().Int("status", resp.StatusCode).Msg("video created")
	fmt.Fprintln(out, string(body))
	return nil
}
