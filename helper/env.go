package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/relloyd/trackpipe/constants"
)

// GetEnvVar fetches OS environment variable.
// If the variable is not set it returns empty string.
// It also returns an error if there is a missing value AND mandatory == true.
func GetEnvVar(k string, mandatory bool) (string, error) {
	if value := os.Getenv(k); value != "" {
		return value, nil
	} else {
		if mandatory {
			return "", fmt.Errorf("environment variable %v is not set", k)
		} else {
			return "", nil
		}
	}
}

// ReadValueFromEnv will read the env var called name and populate the supplied val.
// If the env var is not set then return an error and leave val untouched.
func ReadValueFromEnv(name string, val *string) error {
	v := os.Getenv(name)
	if v != "" { // if the environment variable was set...
		*val = v // update the callers value
		return nil
	} else { // else there was no environment variable set...
		return fmt.Errorf("value for environment variable %v not found", name)
	}
}

// ReadValueFromEnvWithDefault will read the value of name from the environment into v.
// If it's not set then it will apply the supplied defaultValue and return v.
func ReadValueFromEnvWithDefault(name string, defaultValue string) (v string) {
	_ = ReadValueFromEnv(name, &v)
	if v == "" && defaultValue != "" { // if the environment variable is not set and we have been given a default value...
		v = defaultValue
	}
	return
}

// ReadFirstValueFromEnv populates val with the first variable in names that is set.
// It returns the name that was used, or an empty string if none were set.
func ReadFirstValueFromEnv(val *string, names ...string) string {
	for _, n := range names {
		if err := ReadValueFromEnv(n, val); err == nil {
			return n
		}
	}
	return ""
}

// EnvVarName converts a dotted or dashed setting name into an environment variable using
// constants.EnvVarPrefix, e.g. "spotify.client-id" becomes TP_SPOTIFY_CLIENT_ID.
func EnvVarName(name string) string {
	n := strings.NewReplacer(".", "_", "-", "_").Replace(strings.TrimSpace(name))
	return fmt.Sprintf("%v_%v", constants.EnvVarPrefix, strings.ToUpper(n))
}
