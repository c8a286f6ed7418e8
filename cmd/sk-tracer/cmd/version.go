package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simkube-go/sk-tracer/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		fmt.Fprintln(cmd.OutOrStdout(), version.BuildContext())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
