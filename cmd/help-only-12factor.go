package cmd

import (
	"fmt"

	"github.com/relloyd/trackpipe/constants"
	"github.com/spf13/cobra"
)

var twelveFactorCmd = &cobra.Command{
	Use:   "12f",
	Short: `View help notes for running in Twelve-Factor mode`,
	Long: fmt.Sprintf(`
Trackpipe can be controlled by environment variables and is a good fit to run
on a scheduler or in serverless environments.

To enable Twelve-Factor mode, set environment variable %[1]s_12FACTOR_MODE=1,
or %[1]s_12FACTOR_MODE=lambda to run as an AWS Lambda handler.
To supply flags documented by the regular command-line usage, set an
equivalent environment variable using the following convention:

<%[1]s>_<flag long-name in upper case>

For example, this will run the audio features pipeline once:

export %[1]s_12FACTOR_MODE=1
export %[1]s_LOG_LEVEL=info
export %[1]s_COMMAND=run
export %[1]s_SUBCOMMAND=audio-features
export SPOTIFY_CLIENT_ID=...
export SPOTIFY_CLIENT_SECRET=...
export SPOTIFY_REFRESH_TOKEN=...
export SNOWFLAKE_ACCOUNT=... SNOWFLAKE_USER=... SNOWFLAKE_PASSWORD=...
export %[1]s_STORAGE_BUCKET=s3://spotify-data-bucket
export %[1]s_DEDUPE_MODE=track

Then execute the CLI tool without any arguments or flags to kick off the pipeline.
Use %[1]s_COMMAND=serve with no subcommand to start the web server.

`, constants.EnvVarPrefix),
}

func init() {
	rootCmd.AddCommand(twelveFactorCmd)
}
