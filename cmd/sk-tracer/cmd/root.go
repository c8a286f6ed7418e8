package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sk-tracer",
	Short: "Record the history of kubernetes objects for simulation",
	Long: `sk-tracer watches the configured kubernetes resource types and records every change
in an in-memory trace, optionally journaled to valkey or kafka and exported to s3.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env variables prefixed by SKTRACER_ are used otherwise)")
}
