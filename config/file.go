package config

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
	c "github.com/relloyd/trackpipe/constants"
	"gopkg.in/yaml.v2"
)

// FileNotFoundError denotes failing to find configuration file.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// DefaultFilePath returns ~/.trackpipe/config.yaml.
func DefaultFilePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return path.Join(home, c.ConfigDir, c.ConfigFileName), nil
}

// readFile loads the YAML file at fileName into a generic map.
// A missing file is reported as FileNotFoundError.
func readFile(fileName string) (map[string]interface{}, error) {
	fileName, err := homedir.Expand(fileName)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(fileName)
	if errors.Is(err, os.ErrNotExist) {
		return nil, FileNotFoundError{name: fileName}
	} else if err != nil {
		return nil, err
	}
	data := make(map[string]interface{})
	if err = yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("error reading config file %v: %w", fileName, err)
	}
	return data, nil
}
