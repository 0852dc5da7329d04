package cmd

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-01-02T03:04+0000"
	osArch           = "linux"
	stackDumpOnPanic bool
	configFile       string
)

var rootCmd = &cobra.Command{
	Use: "tp",
	Long: `Trackpipe pulls your Spotify top tracks and their audio features into Snowflake.

Each run writes one parquet file to object storage under a time-partitioned key and copies it
into the warehouse. Audio features are only fetched for tracks loaded since the last run.
Run the pipelines once from the command line, or start an HTTP server and trigger them remotely.`,
	SilenceUsage: true,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().StringVarP(&configFile, "config-file", "c", "", "Config `<file>` (default: ~/.trackpipe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if twelveFactorMode { // if we are running based on environment variables...
		if lambdaMode { // if we should handle lambda execution...
			lambda.Start(func() error { return execute12FactorMode(twelveFactorActions) })
		} else {
			if err := execute12FactorMode(twelveFactorActions); err != nil {
				// execute12FactorMode prints the error.
				os.Exit(1)
			}
		}
	} else { // else we're using CLI args and flags via Cobra...
		if err := rootCmd.Execute(); err != nil {
			// Execute() prints the error.
			os.Exit(1)
		}
	}
}
