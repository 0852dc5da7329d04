package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/relloyd/trackpipe/config"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/helper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"mock": cliFlag{name: "mock", shortHand: "m", desc: "mock switch for testing"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: error|warn|info|debug|trace (overrides logLevel in the config file)"},
	"address": cliFlag{name: "address", shortHand: "a",
		desc: "Address to listen on"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port to listen on"},
	"load-mode": cliFlag{name: "load-mode", shortHand: "M",
		desc: fmt.Sprintf("How staged files are copied into Snowflake: %v (explicit files recorded in the \n"+
			"load ledger) or %v (one COPY over every file matching the pattern)", constants.LoadModeFiles, constants.LoadModePattern)},
	"dedupe-mode": cliFlag{name: "dedupe-mode", shortHand: "D",
		desc: fmt.Sprintf("How new tracks are resolved: %v (one entry per track and load) or %v \n"+
			"(one entry per track, latest load)", constants.DedupeModeLoad, constants.DedupeModeTrack)},
	"archive": cliFlag{name: "archive", shortHand: "A",
		desc: "Move staged files under the archive prefix once they are loaded"},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Output format: yaml|json"},
}

// cliOverrides are flag values that take precedence over the config file and environment.
// Empty values are not applied.
type cliOverrides struct {
	logLevel   string
	address    string
	port       string
	loadMode   string
	dedupeMode string
	archive    bool
}

func (o *cliOverrides) toMap() map[string]interface{} {
	m := make(map[string]interface{})
	set := func(v string, path ...string) {
		if v != "" {
			config.SetPath(m, path, v)
		}
	}
	set(o.logLevel, "logLevel")
	set(o.address, "server", "addr")
	set(o.port, "server", "port")
	set(o.loadMode, "warehouse", "loadMode")
	set(o.dedupeMode, "watermark", "dedupeMode")
	if o.archive {
		config.SetPath(m, []string{"storage", "archiveAfterLoad"}, true)
	}
	return m
}

// addFlag registers name on c, reading its default from TP_<FLAG> when twelveFactorMode is set.
// Called from init() functions.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue) // get the cliFlag details, with defaults taken from the environment or the supplied defaultValue
	desc := sw.desc + desc2                // create the full flag description for use below
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		if twelveFactorMode {
			*p = sw.val
		} else {
			c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
			// Signal that the flag was set so defaults take effect.
			if sw.val != "" { // if there is a value via default...
				mustSetFlag(c.Flags(), sw.name, sw.val)
			}
		}
	case *bool:
		if twelveFactorMode {
			// Convert any string value into True.
			*p = sw.val != ""
		} else {
			defaultBool := strings.ToLower(sw.val) == "true"
			c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, desc)
		}
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		if twelveFactorMode {
			*p = defaultInt
		} else {
			c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// Optionally mark the flag as mandatory.
	if required && !twelveFactorMode { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment, when running in twelveFactorMode.
// If a value cannot be found then use the supplied defaultValue in its place.
func (f *cliFlags) getCliFlag(name string, defaultValue string) cliFlag {
	s, ok := (*f)[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	s.val = defaultValue
	if twelveFactorMode { // if we should read env vars...
		if err := helper.ReadValueFromEnv(flagNameToEnvVar(name), &s.val); err != nil { // if there's no value for the env var...
			// Apply the default.
			s.val = defaultValue
		}
	}
	return s
}

// flagNameToEnvVar will form a sanitised environment variable name using constants.EnvVarPrefix.
func flagNameToEnvVar(name string) string {
	return constants.EnvVarPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// addOverrideFlags registers the flags that can override config values on c.
func addOverrideFlags(c *cobra.Command, o *cliOverrides, names ...string) {
	for _, n := range names {
		switch n {
		case "log-level":
			switches.addFlag(c, &o.logLevel, n, "", false, "")
		case "address":
			switches.addFlag(c, &o.address, n, "", false, "")
		case "port":
			switches.addFlag(c, &o.port, n, "", false, "")
		case "load-mode":
			switches.addFlag(c, &o.loadMode, n, "", false, "")
		case "dedupe-mode":
			switches.addFlag(c, &o.dedupeMode, n, "", false, "")
		case "archive":
			switches.addFlag(c, &o.archive, n, "", false, "")
		default:
			panic(fmt.Sprintf("flag %q cannot override config", n))
		}
	}
}
