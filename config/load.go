package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/rdbms"
)

// envBinding maps a config path to the environment variables that may supply it, highest priority first.
type envBinding struct {
	path  []string
	names []string
}

// envBindings lists TP_* names first, then the legacy names used by the deployed service.
var envBindings = []envBinding{
	{[]string{"logLevel"}, []string{"TP_LOG_LEVEL"}},
	{[]string{"stackDumpOnPanic"}, []string{"TP_STACK_DUMP"}},
	{[]string{"spotify", "clientId"}, []string{"TP_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"}},
	{[]string{"spotify", "clientSecret"}, []string{"TP_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"}},
	{[]string{"spotify", "refreshToken"}, []string{"TP_SPOTIFY_REFRESH_TOKEN", "SPOTIFY_REFRESH_TOKEN"}},
	{[]string{"spotify", "tokenUrl"}, []string{"TP_SPOTIFY_TOKEN_URL"}},
	{[]string{"spotify", "apiBaseUrl"}, []string{"TP_SPOTIFY_API_BASE_URL"}},
	{[]string{"spotify", "topTracksLimit"}, []string{"TP_SPOTIFY_TOP_TRACKS_LIMIT"}},
	{[]string{"spotify", "timeRange"}, []string{"TP_SPOTIFY_TIME_RANGE"}},
	{[]string{"spotify", "requestTimeoutSeconds"}, []string{"TP_SPOTIFY_REQUEST_TIMEOUT_SECONDS"}},
	{[]string{"spotify", "maxRetries"}, []string{"TP_SPOTIFY_MAX_RETRIES"}},
	{[]string{"spotify", "featureConcurrency"}, []string{"TP_SPOTIFY_FEATURE_CONCURRENCY"}},
	{[]string{"spotify", "requestsPerSecond"}, []string{"TP_SPOTIFY_REQUESTS_PER_SECOND"}},
	{[]string{"spotify", "trackFilter"}, []string{"TP_SPOTIFY_TRACK_FILTER"}},
	{[]string{"storage", "type"}, []string{"TP_STORAGE_TYPE"}},
	{[]string{"storage", "bucket"}, []string{"TP_STORAGE_BUCKET", "S3_BUCKET"}},
	{[]string{"storage", "region"}, []string{"TP_STORAGE_REGION", "AWS_REGION", "AWS_DEFAULT_REGION"}},
	{[]string{"storage", "topTracksPrefix"}, []string{"TP_STORAGE_TOP_TRACKS_PREFIX"}},
	{[]string{"storage", "audioFeaturesPrefix"}, []string{"TP_STORAGE_AUDIO_FEATURES_PREFIX"}},
	{[]string{"storage", "archivePrefix"}, []string{"TP_STORAGE_ARCHIVE_PREFIX"}},
	{[]string{"storage", "archiveAfterLoad"}, []string{"TP_STORAGE_ARCHIVE_AFTER_LOAD"}},
	{[]string{"warehouse", "dsn"}, []string{"TP_WAREHOUSE_DSN"}},
	{[]string{"warehouse", "snowflake", "account"}, []string{"TP_SNOWFLAKE_ACCOUNT", "SNOWFLAKE_ACCOUNT"}},
	{[]string{"warehouse", "snowflake", "user"}, []string{"TP_SNOWFLAKE_USER", "SNOWFLAKE_USER"}},
	{[]string{"warehouse", "snowflake", "password"}, []string{"TP_SNOWFLAKE_PASSWORD", "SNOWFLAKE_PASSWORD"}},
	{[]string{"warehouse", "snowflake", "warehouse"}, []string{"TP_SNOWFLAKE_WAREHOUSE", "SNOWFLAKE_WAREHOUSE"}},
	{[]string{"warehouse", "snowflake", "database"}, []string{"TP_SNOWFLAKE_DATABASE", "SNOWFLAKE_DATABASE"}},
	{[]string{"warehouse", "snowflake", "schema"}, []string{"TP_SNOWFLAKE_SCHEMA", "SNOWFLAKE_SCHEMA"}},
	{[]string{"warehouse", "snowflake", "role"}, []string{"TP_SNOWFLAKE_ROLE", "SNOWFLAKE_ROLE"}},
	{[]string{"warehouse", "topTracksTable"}, []string{"TP_WAREHOUSE_TOP_TRACKS_TABLE"}},
	{[]string{"warehouse", "audioFeaturesTable"}, []string{"TP_WAREHOUSE_AUDIO_FEATURES_TABLE"}},
	{[]string{"warehouse", "ledgerTable"}, []string{"TP_WAREHOUSE_LEDGER_TABLE"}},
	{[]string{"warehouse", "topTracksStage"}, []string{"TP_WAREHOUSE_TOP_TRACKS_STAGE"}},
	{[]string{"warehouse", "audioFeaturesStage"}, []string{"TP_WAREHOUSE_AUDIO_FEATURES_STAGE"}},
	{[]string{"warehouse", "loadMode"}, []string{"TP_WAREHOUSE_LOAD_MODE"}},
	{[]string{"warehouse", "filePattern"}, []string{"TP_WAREHOUSE_FILE_PATTERN"}},
	{[]string{"watermark", "dedupeMode"}, []string{"TP_WATERMARK_DEDUPE_MODE"}},
	{[]string{"server", "addr"}, []string{"TP_SERVER_ADDR"}},
	{[]string{"server", "port"}, []string{"TP_SERVER_PORT", "PORT"}},
}

// envVarTokensJson holds a JSON document with a refresh_token, as written by the one-off authorisation flow.
const envVarTokensJson = "SPOTIFY_TOKENS_JSON"

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	FileName     string // YAML file; empty means the default path, which may be absent
	SkipEnv      bool
	Overrides    map[string]interface{} // nested map applied last, e.g. from CLI flags
	SkipValidate bool
}

// Load builds a Config from defaults, the YAML file, the environment and overrides, in that order,
// then derives the Snowflake DSN if needed and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	// File.
	fileName := opts.FileName
	explicitFile := fileName != ""
	if !explicitFile {
		var err error
		if fileName, err = DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	data, err := readFile(fileName)
	if err != nil && !(errors.As(err, &FileNotFoundError{}) && !explicitFile) {
		return nil, err
	}
	if err = decode(data, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file %v: %w", fileName, err)
	}
	// Environment.
	if !opts.SkipEnv {
		if err = decode(readEnv(), cfg); err != nil {
			return nil, fmt.Errorf("error decoding environment: %w", err)
		}
		if err = applyTokensJson(cfg); err != nil {
			return nil, err
		}
	}
	// Overrides.
	if err = decode(opts.Overrides, cfg); err != nil {
		return nil, fmt.Errorf("error decoding overrides: %w", err)
	}
	if err = deriveDsn(cfg); err != nil {
		return nil, err
	}
	if opts.SkipValidate {
		return cfg, nil
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode applies the nested map m on top of the values already in cfg.
func decode(m map[string]interface{}, cfg *Config) error {
	if len(m) == 0 {
		return nil
	}
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return d.Decode(m)
}

// readEnv returns a nested map of every bound environment variable that is set.
func readEnv() map[string]interface{} {
	m := make(map[string]interface{})
	for _, b := range envBindings {
		var v string
		if helper.ReadFirstValueFromEnv(&v, b.names...) != "" {
			SetPath(m, b.path, v)
		}
	}
	return m
}

// SetPath stores v in the nested map m at path, creating intermediate maps.
func SetPath(m map[string]interface{}, path []string, v interface{}) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func applyTokensJson(cfg *Config) error {
	var raw string
	if cfg.Spotify.RefreshToken != "" || helper.ReadValueFromEnv(envVarTokensJson, &raw) != nil {
		return nil
	}
	tokens := struct {
		RefreshToken string `json:"refresh_token"`
	}{}
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return fmt.Errorf("error parsing %v: %w", envVarTokensJson, err)
	}
	cfg.Spotify.RefreshToken = tokens.RefreshToken
	return nil
}

// deriveDsn builds the warehouse DSN from the individual Snowflake parameters when no DSN is set.
func deriveDsn(cfg *Config) error {
	p := cfg.Warehouse.Snowflake
	if cfg.Warehouse.Dsn != "" || p.Account == "" {
		return nil
	}
	dsn, err := rdbms.SnowflakeGetDSN(&rdbms.SnowflakeConnectionDetails{
		Account:   p.Account,
		DBName:    p.Database,
		Schema:    p.Schema,
		User:      p.User,
		Password:  p.Password,
		Warehouse: p.Warehouse,
		RoleName:  p.Role,
	})
	if err != nil {
		return fmt.Errorf("error building Snowflake DSN: %w", err)
	}
	cfg.Warehouse.Dsn = dsn
	return nil
}
