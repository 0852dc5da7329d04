package cmd

import (
	"context"
	"os"

	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/stats"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline once and print its report",
	Long: `Run a pipeline once and print its report as JSON.

The process exits non-zero when the run fails. A run with nothing to do succeeds.`,
}

var runTopTracksCmd = &cobra.Command{
	Use:   "top-tracks",
	Short: "Fetch top tracks, stage them and copy them into Snowflake",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTopTracks()
	},
}

var runAudioFeaturesCmd = &cobra.Command{
	Use:   "audio-features",
	Short: "Fetch audio features for tracks loaded since the last run, stage and load them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAudioFeatures()
	},
}

var runAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run top-tracks then audio-features",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAll()
	},
}

var runFlags cliOverrides

func init() {
	rootCmd.AddCommand(runCmd)
	for _, c := range []*cobra.Command{runTopTracksCmd, runAudioFeaturesCmd, runAllCmd} {
		runCmd.AddCommand(c)
		c.Flags().SortFlags = false
		addOverrideFlags(c, &runFlags, "log-level", "load-mode", "dedupe-mode", "archive")
	}
}

func runTopTracks() error {
	return runOnce(func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
		return p.RunTopTracks(ctx)
	})
}

func runAudioFeatures() error {
	return runOnce(func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
		return p.RunAudioFeatures(ctx)
	})
}

func runAll() error {
	return runOnce(func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
		return p.RunAll(ctx)
	})
}

// runOnce builds the pipeline from config, calls fn and prints whatever report it returns,
// including a partial report on error.
func runOnce(fn func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error)) error {
	cfg, err := loadConfig(&runFlags)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := context.Background()
	return withPipeline(ctx, log, cfg, func(p *pipeline.Pipeline, _ *stats.RunRegistry) error {
		report, err := fn(ctx, p)
		if perr := printReport(os.Stdout, report); perr != nil {
			log.Error("error printing report: ", perr)
		}
		if err != nil {
			log.Error(err)
		}
		return err
	})
}
