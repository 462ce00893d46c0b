package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set at build time with -ldflags "-X github.com/oneconcern/slides/cmd/slides/cmd.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "prints the version of slides",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "slides %s (commit: %s, built: %s, %s)\n", Version, GitCommit, BuildDate, runtime.Version())
		},
	}
}
