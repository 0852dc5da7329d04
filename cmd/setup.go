package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/relloyd/trackpipe/config"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/stats"
)

// loadConfig reads the effective config: defaults, file, environment then flags.
func loadConfig(o *cliOverrides) (*config.Config, error) {
	return config.Load(config.LoadOptions{FileName: configFile, Overrides: o.toMap()})
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewLogger(constants.AppName, cfg.LogLevel, cfg.StackDumpOnPanic || stackDumpOnPanic)
}

// withPipeline connects to the warehouse and object storage, builds a Pipeline and calls fn.
// Connections are released when fn returns.
func withPipeline(ctx context.Context, log logger.Logger, cfg *config.Config, fn func(p *pipeline.Pipeline, registry *stats.RunRegistry) error) error {
	conn, err := pipeline.OpenWarehouse(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("error closing warehouse connection: ", err)
		}
	}()
	store, err := pipeline.NewStorage(ctx, log, cfg)
	if err != nil {
		return errors.Wrap(err, "error creating storage client")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	registry := stats.NewRunRegistry(log, constants.RunRegistryMaxCompleted)
	p, err := pipeline.Build(log, cfg, conn, store, registry)
	if err != nil {
		return err
	}
	return fn(p, registry)
}

// printReport writes a run report to w as indented JSON.
func printReport(w io.Writer, report interface{}) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
