package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	c "github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set such that other init() functions that configure
// Cobra can do the job of processing all environment variables that would contain equivalent of the CLI flag
// structures used by Trackpipe's commands.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		if strings.ToLower(mode) == "lambda" {
			lambdaMode = true
		}
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
		lambdaMode = false
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"
	envVarSubcommand       = c.EnvVarPrefix + "_" + "SUBCOMMAND"
	envVarLogLevel         = c.EnvVarPrefix + "_" + "LOG_LEVEL"
	envVarStackDump        = c.EnvVarPrefix + "_" + "STACK_DUMP"
	envVarClientSecret     = c.EnvVarPrefix + "_" + "SPOTIFY_CLIENT_SECRET"
	envVarRefreshToken     = c.EnvVarPrefix + "_" + "SPOTIFY_REFRESH_TOKEN"
	envVarWarehouseDsn     = c.EnvVarPrefix + "_" + "WAREHOUSE_DSN"
	envVarSnowflakePass    = c.EnvVarPrefix + "_" + "SNOWFLAKE_PASSWORD"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if os env var envVarTwelveFactorMode is set to "lambda"
	twelveFactorVars = map[string]string{
		envVarCommand:       "",
		envVarSubcommand:    "",
		envVarLogLevel:      "",
		envVarStackDump:     "",
		envVarClientSecret:  "",
		envVarRefreshToken:  "",
		envVarWarehouseDsn:  "",
		envVarSnowflakePass: "",
	}
	twelveFactorVarsSensitive = map[string]string{ // used to flag some of the above variables as being sensitive.
		envVarClientSecret:  "",
		envVarRefreshToken:  "",
		envVarWarehouseDsn:  "",
		envVarSnowflakePass: "",
	}
)

type twelveFactorAction struct {
	runnerFunc func() error
}

// twelveFactorActions are keyed by <command>-<subcommand>, or <command>- for commands without one.
var twelveFactorActions = map[string]twelveFactorAction{
	"run-top-tracks":     {runnerFunc: runTopTracks},
	"run-audio-features": {runnerFunc: runAudioFeatures},
	"run-all":            {runnerFunc: runAll},
	"serve-":             {runnerFunc: runServe},
	"ledger-init":        {runnerFunc: runLedgerInit},
}

func execute12FactorMode(acts map[string]twelveFactorAction) (err error) {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "warn") // fetch logLevel from env as this is not a persistent flag, given that we wanted different logging defaults per cobra action.
	log := logger.NewLogger(c.AppName, logLevel, stackDumpOnPanic)
	log.Info("Trackpipe is running in 12 Factor mode...")
	// Save values for the required variables.
	for k := range twelveFactorVars { // for each env variable that we need...
		// Save it and log it.
		twelveFactorVars[k] = os.Getenv(k)
		_, sensitive := twelveFactorVarsSensitive[k]
		if !sensitive { // if the env variable does not contain sensitive values...
			// Log the value.
			log.Debug(k, "=", twelveFactorVars[k])
		} else { // else output obfuscated value...
			log.Debug(k, "=", helper.Obfuscate(twelveFactorVars[k]))
		}
	}
	// Use command and subcommand to fetch the appropriate action.
	action := fmt.Sprintf("%v-%v", twelveFactorVars[envVarCommand], twelveFactorVars[envVarSubcommand])
	a, ok := acts[action]
	if !ok {
		err = fmt.Errorf("invalid combination of command (%v) and subcommand (%v), expected one of: %v",
			twelveFactorVars[envVarCommand], twelveFactorVars[envVarSubcommand], actionNames(acts))
		log.Error(err.Error())
		return
	}
	// Run the action.
	err = a.runnerFunc()
	if err != nil {
		log.Error("Error: ", err)
	}
	return err
}

func actionNames(acts map[string]twelveFactorAction) string {
	names := make([]string, 0, len(acts))
	for k := range acts {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
