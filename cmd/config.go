package cmd

import (
	"fmt"
	"os"

	"github.com/relloyd/trackpipe/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: fmt.Sprintf(`Inspect the effective configuration.

Values are layered: defaults, then the config file (default %v), then
environment variables, then command-line flags.`, defaultConfigPath()),
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective config with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoadOptions{FileName: configFile, SkipValidate: true})
		if err != nil {
			return err
		}
		return config.Print(cfg, os.Stdout, configOutputFormat)
	},
}

var configOutputFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPrintCmd)
	switches.addFlag(configPrintCmd, &configOutputFormat, "output", "yaml", false, "")
}

func defaultConfigPath() string {
	p, err := config.DefaultFilePath()
	if err != nil {
		return "~/.trackpipe/config.yaml"
	}
	return p
}
