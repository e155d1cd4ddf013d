package cmd

import (
	"fmt"
	"strings"

	"github.com/nodevenv/nodevenv/pkg/catalog"
	"github.com/nodevenv/nodevenv/pkg/config"
	"github.com/nodevenv/nodevenv/pkg/fetch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// versionsPerRow matches the upstream list layout.
const versionsPerRow = 8

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"versions"},
		Short:   "List available node.js versions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(v, "")
			if err != nil {
				return err
			}

			client := &catalog.Client{
				Mirrors: opts.Mirrors,
				HTTP:    fetch.NewClient(opts.CacheDir, opts.Retries, logger),
				Log:     logger,
			}
			releases, err := client.Releases(cmd.Context())
			if err != nil {
				return err
			}

			var row []string
			for _, r := range releases {
				version := r.SemVer()
				if r.LTS.IsLTS() {
					version += " (lts)"
				}
				row = append(row, version)
				if len(row) == versionsPerRow {
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(row, "\t"))
					row = nil
				}
			}
			if len(row) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(row, "\t"))
			}
			return nil
		},
	}
}
