package main

import (
	"os"

	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/imrenagi/vod-upload-relay/server"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid environment")
	}

	root := &cobra.Command{
		Use:          "vod-relay",
		Short:        "Resumable upload relay for the ArvanCloud VOD API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return server.InitializeLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
		},
	}
	cfg.BindFlags(root.PersistentFlags())
	root.AddCommand(
		newServeCmd(&cfg),
		newChannelsCmd(&cfg),
		newVideoCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
