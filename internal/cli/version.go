package cli

import (
	"fmt"

	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/mohammedgqudah/ff/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show ff version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		return formatter(cmd).Print(info, func(p *output.Printer) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ff %s\n", info.Version)
			fmt.Fprintf(w, "Git Commit: %s\n", info.GitCommit)
			fmt.Fprintf(w, "Build Date: %s\n", info.BuildTime)
			fmt.Fprintf(w, "Go: %s %s\n", info.GoVersion, info.Platform)
		})
	},
}
