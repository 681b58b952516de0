package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/imrenagi/vod-upload-relay/config"
	"github.com/spf13/cobra"
)

func newChannelsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the VOD channels visible to the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Arvan.APIKey == "" {
				return config.ErrMissingAPIKey
			}
			client, err := newArvanClient(cfg.Arvan)
			if err != nil {
				return err
			}
			channels, err := client.Channels(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ch.ID, ch.Title, ch.Description)
			}
			return w.Flush()
		},
	}
}
