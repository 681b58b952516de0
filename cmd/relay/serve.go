package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/imrenagi/vod-upload-relay/api/vod"
	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/imrenagi/vod-upload-relay/relay"
	"github.com/imrenagi/vod-upload-relay/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessions, err := openSessions(ctx, cfg.Session)
			if err != nil {
				return err
			}
			defer sessions.Close()

			videos, err := openCatalog(ctx, cfg.Catalog)
			if err != nil {
				return err
			}
			defer videos.Close()

			client, err := newArvanClient(cfg.Arvan)
			if err != nil {
				return err
			}

			svc := relay.NewService(sessions, client, videos, relay.WithSessionTTL(cfg.Session.TTL))
			ctrl := vod.NewController(svc,
				vod.WithPublicURL(cfg.Server.PublicURL),
				vod.WithExposeUpstreamURL(cfg.Server.ExposeUpstreamURL),
				vod.WithSecureCookie(cfg.Server.SecureCookie),
				vod.WithMaxChunkSize(cfg.Server.MaxChunkSize))

			opts := server.DefaultOpts()
			opts.Addr = cfg.Server.Addr
			opts.ServiceName = cfg.Telemetry.ServiceName
			opts.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint

			log.Info().
				Str("session_backend", cfg.Session.Backend).
				Str("catalog_backend", cfg.Catalog.Backend).
				Dur("session_ttl", cfg.Session.TTL).
				Msg("relay configured")

			srv := server.New(opts, ctrl, sessions.pingers()...)
			return srv.Run(ctx)
		},
	}
}
