package cmd

import (
	"context"

	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/rdbms"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage the load ledger table",
}

var ledgerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the load ledger table if it does not exist",
	Long: `Create the load ledger table if it does not exist.

The ledger records every staged file copied into Snowflake so that files are loaded once only.
It is required when warehouse.loadMode is files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLedgerInit()
	},
}

var ledgerFlags cliOverrides

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerInitCmd)
	addOverrideFlags(ledgerInitCmd, &ledgerFlags, "log-level")
}

func runLedgerInit() error {
	cfg, err := loadConfig(&ledgerFlags)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := context.Background()
	conn, err := pipeline.OpenWarehouse(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	table, err := rdbms.ParseSchemaTable(cfg.Warehouse.LedgerTable)
	if err != nil {
		return err
	}
	return loader.NewLedger(log, table).Init(ctx, conn)
}
