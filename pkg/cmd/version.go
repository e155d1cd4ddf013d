package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the tool version, overridden at build time via
// -ldflags "-X github.com/nodevenv/nodevenv/pkg/cmd.Version=...".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nodevenv version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
