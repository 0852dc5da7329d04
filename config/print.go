package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ghodss/yaml"
)

// Print writes the redacted config to w as "yaml" or "json".
func Print(cfg *Config, w io.Writer, format string) error {
	var b []byte
	var err error
	switch strings.ToLower(format) {
	case "yaml", "":
		b, err = yaml.Marshal(cfg.Redacted())
	case "json":
		b, err = json.MarshalIndent(cfg.Redacted(), "", "  ")
		b = append(b, '\n')
	default:
		return fmt.Errorf("unsupported output format %q, use yaml or json", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
