package main

import (
	"fmt"

	"github.com/imrenagi/vod-upload-relay/catalog"
	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newVideoCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Manage the local video catalog",
	}
	cmd.AddCommand(newVideoPutCmd(cfg), newVideoGetCmd(cfg))
	return cmd
}

func newVideoPutCmd(cfg *config.Config) *cobra.Command {
	var (
		v             catalog.Video
		videoID       string
		channelID     string
		watermark     string
		watermarkArea string
		channelTitle  string
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a catalog entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Catalog.Backend == config.CatalogBackendMemory && cfg.Catalog.SeedFile == "" {
				return errVolatileCatalog
			}
			if cmd.Flags().Changed("video-id") {
				v.VideoID = &videoID
			}
			if cmd.Flags().Changed("channel-id") {
				v.ChannelID = &channelID
			}
			if cmd.Flags().Changed("watermark") {
				v.Watermark = &watermark
			}
			if cmd.Flags().Changed("watermark-area") {
				v.WatermarkArea = &watermarkArea
			}

			if channelTitle != "" {
				v.ChannelTitle = &channelTitle
			}
			if channelTitle != "" && v.ChannelID == nil {
				if cfg.Arvan.APIKey == "" {
					return fmt.Errorf("resolving --channel-title: %w", config.ErrMissingAPIKey)
				}
				client, err := newArvanClient(cfg.Arvan)
				if err != nil {
					return err
				}
				id, ok, err := client.ChannelIDByTitle(ctx, channelTitle)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("channel %q not found", channelTitle)
				}
				v.ChannelID = &id
			}

			videos, err := openCatalog(ctx, cfg.Catalog)
			if err != nil {
				return err
			}
			defer videos.Close()

			if err := videos.SaveVideo(ctx, v); err != nil {
				return err
			}
			if err := videos.Flush(); err != nil {
				return err
			}
			log.Info().Int64("id", v.ID).Str("title", v.Title).Msg("video saved")
			return nil
		},
	}

	cmd.Flags().Int64Var(&v.ID, "id", 0, "video id used as video_pk")
	cmd.Flags().StringVar(&v.Title, "title", "", "video title")
	cmd.Flags().StringVar(&v.Slug, "slug", "", "video slug")
	cmd.Flags().StringVar(&watermark, "watermark", "", "upstream watermark id")
	cmd.Flags().StringVar(&watermarkArea, "watermark-area", "", "watermark placement, e.g. center or fix_top_left")
	cmd.Flags().StringVar(&videoID, "video-id", "", "upstream video id once the upload has been saved")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "upstream channel id")
	cmd.Flags().StringVar(&channelTitle, "channel-title", "", "channel title; its id is looked up unless --channel-id is given")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newVideoGetCmd(cfg *config.Config) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a catalog entry as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			videos, err := openCatalog(cmd.Context(), cfg.Catalog)
			if err != nil {
				return err
			}
			defer videos.Close()

			v, ok, err := videos.FindVideo(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("video %d not found", id)
			}
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "video id")
	cmd.MarkFlagRequired("id")
	return cmd
}
