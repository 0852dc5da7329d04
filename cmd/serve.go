package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/relloyd/trackpipe/actions"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/stats"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service that runs the pipelines on request",
	Long: `Start a web service that runs the pipelines on request.

  POST /run-top-tracks        run the top tracks pipeline
  POST /run-audio-features    run the audio features pipeline
  GET  /runs, /runs/{runId}   list runs and fetch one run's report
  GET  /health, /metrics      liveness and Prometheus metrics
  GET  /stop                  shut the server down`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveFlags cliOverrides

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	addOverrideFlags(serveCmd, &serveFlags, "address", "port", "log-level", "load-mode", "dedupe-mode", "archive")
}

func runServe() error {
	cfg, err := loadConfig(&serveFlags)
	if err != nil {
		return err
	}
	addr := net.ParseIP(cfg.Server.Addr)
	if addr == nil {
		return fmt.Errorf("invalid server address %q", cfg.Server.Addr)
	}
	log := newLogger(cfg)
	return withPipeline(context.Background(), log, cfg, func(p *pipeline.Pipeline, registry *stats.RunRegistry) error {
		return actions.RunWebServer(log, &actions.WebServerConfig{
			Addr:     addr,
			Port:     cfg.Server.Port,
			Runner:   p,
			Registry: registry,
		})
	})
}
