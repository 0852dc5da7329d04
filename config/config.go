package config

import (
	"fmt"

	c "github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/rdbms"
)

// Config is built once at process start and passed by reference to the components that need it.
// No component reads the environment directly.
type Config struct {
	LogLevel         string          `mapstructure:"logLevel" json:"logLevel" errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool            `mapstructure:"stackDumpOnPanic" json:"stackDumpOnPanic"`
	Spotify          SpotifyConfig   `mapstructure:"spotify" json:"spotify"`
	Storage          StorageConfig   `mapstructure:"storage" json:"storage"`
	Warehouse        WarehouseConfig `mapstructure:"warehouse" json:"warehouse"`
	Watermark        WatermarkConfig `mapstructure:"watermark" json:"watermark"`
	Server           ServerConfig    `mapstructure:"server" json:"server"`
}

type SpotifyConfig struct {
	ClientID              string  `mapstructure:"clientId" json:"clientId" errorTxt:"spotify client id" mandatory:"yes"`
	ClientSecret          string  `mapstructure:"clientSecret" json:"clientSecret" errorTxt:"spotify client secret" mandatory:"yes"`
	RefreshToken          string  `mapstructure:"refreshToken" json:"refreshToken" errorTxt:"spotify refresh token" mandatory:"yes"`
	TokenURL              string  `mapstructure:"tokenUrl" json:"tokenUrl" errorTxt:"spotify token url" mandatory:"yes"`
	APIBaseURL            string  `mapstructure:"apiBaseUrl" json:"apiBaseUrl" errorTxt:"spotify api base url" mandatory:"yes"`
	TopTracksLimit        int     `mapstructure:"topTracksLimit" json:"topTracksLimit"`
	TimeRange             string  `mapstructure:"timeRange" json:"timeRange"`
	RequestTimeoutSeconds int     `mapstructure:"requestTimeoutSeconds" json:"requestTimeoutSeconds"`
	MaxRetries            int     `mapstructure:"maxRetries" json:"maxRetries"`
	FeatureConcurrency    int     `mapstructure:"featureConcurrency" json:"featureConcurrency"`
	RequestsPerSecond     float64 `mapstructure:"requestsPerSecond" json:"requestsPerSecond"`
	TrackFilter           string  `mapstructure:"trackFilter" json:"trackFilter"` // optional JSON Logic rule applied to track rows
}

type StorageConfig struct {
	Type                string `mapstructure:"type" json:"type" errorTxt:"storage type (s3|gcs)" mandatory:"yes"`
	Bucket              string `mapstructure:"bucket" json:"bucket" errorTxt:"storage bucket" mandatory:"yes"`
	Region              string `mapstructure:"region" json:"region"`
	TopTracksPrefix     string `mapstructure:"topTracksPrefix" json:"topTracksPrefix" errorTxt:"top tracks prefix" mandatory:"yes"`
	AudioFeaturesPrefix string `mapstructure:"audioFeaturesPrefix" json:"audioFeaturesPrefix" errorTxt:"audio features prefix" mandatory:"yes"`
	ArchivePrefix       string `mapstructure:"archivePrefix" json:"archivePrefix"`
	ArchiveAfterLoad    bool   `mapstructure:"archiveAfterLoad" json:"archiveAfterLoad"`
}

type WarehouseConfig struct {
	Dsn                string          `mapstructure:"dsn" json:"dsn" errorTxt:"warehouse DSN (or SNOWFLAKE_* parameters)" mandatory:"yes"`
	Snowflake          SnowflakeParams `mapstructure:"snowflake" json:"snowflake"`
	TopTracksTable     string          `mapstructure:"topTracksTable" json:"topTracksTable" errorTxt:"top tracks table" mandatory:"yes"`
	AudioFeaturesTable string          `mapstructure:"audioFeaturesTable" json:"audioFeaturesTable" errorTxt:"audio features table" mandatory:"yes"`
	LedgerTable        string          `mapstructure:"ledgerTable" json:"ledgerTable" errorTxt:"ledger table" mandatory:"yes"`
	TopTracksStage     string          `mapstructure:"topTracksStage" json:"topTracksStage" errorTxt:"top tracks stage" mandatory:"yes"`
	AudioFeaturesStage string          `mapstructure:"audioFeaturesStage" json:"audioFeaturesStage" errorTxt:"audio features stage" mandatory:"yes"`
	LoadMode           string          `mapstructure:"loadMode" json:"loadMode" errorTxt:"load mode (files|pattern)" mandatory:"yes"`
	FilePattern        string          `mapstructure:"filePattern" json:"filePattern"`
}

// SnowflakeParams are used to build Dsn when it is not supplied directly.
type SnowflakeParams struct {
	Account   string `mapstructure:"account" json:"account"`
	User      string `mapstructure:"user" json:"user"`
	Password  string `mapstructure:"password" json:"password"`
	Warehouse string `mapstructure:"warehouse" json:"warehouse"`
	Database  string `mapstructure:"database" json:"database"`
	Schema    string `mapstructure:"schema" json:"schema"`
	Role      string `mapstructure:"role" json:"role"`
}

type WatermarkConfig struct {
	DedupeMode string `mapstructure:"dedupeMode" json:"dedupeMode" errorTxt:"watermark dedupe mode (load|track)" mandatory:"yes"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
	Port int    `mapstructure:"port" json:"port"`
}

// Default returns a Config populated with every value that has a sensible default.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Spotify: SpotifyConfig{
			TokenURL:              c.SpotifyTokenURL,
			APIBaseURL:            c.SpotifyAPIBaseURL,
			TopTracksLimit:        c.SpotifyTopTracksLimit,
			TimeRange:             c.SpotifyTimeRange,
			RequestTimeoutSeconds: c.SpotifyRequestTimeoutSeconds,
			MaxRetries:            c.SpotifyMaxRetries,
			FeatureConcurrency:    c.SpotifyFeatureConcurrency,
		},
		Storage: StorageConfig{
			Type:                c.ConnectionTypeS3,
			Bucket:              c.DefaultBucket,
			Region:              c.DefaultRegion,
			TopTracksPrefix:     c.PrefixTopTracks,
			AudioFeaturesPrefix: c.PrefixAudioFeatures,
			ArchivePrefix:       c.PrefixArchive,
		},
		Warehouse: WarehouseConfig{
			TopTracksTable:     c.TableTopTracks,
			AudioFeaturesTable: c.TableAudioFeatures,
			LedgerTable:        c.TableLoadLedger,
			TopTracksStage:     c.StageTopTracks,
			AudioFeaturesStage: c.StageAudioFeatures,
			LoadMode:           c.LoadModeFiles,
			FilePattern:        c.PartitionFilePattern,
		},
		Watermark: WatermarkConfig{DedupeMode: c.DedupeModeLoad},
		Server:    ServerConfig{Addr: "0.0.0.0", Port: c.ServerPortDefault},
	}
}

// Validate checks mandatory values and the enumerations.
func (cfg *Config) Validate() error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	switch cfg.Storage.Type {
	case c.ConnectionTypeS3:
		if cfg.Storage.Region == "" {
			return fmt.Errorf("please supply a value for storage region when the storage type is %q", c.ConnectionTypeS3)
		}
	case c.ConnectionTypeGCS:
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
	switch cfg.Watermark.DedupeMode {
	case c.DedupeModeLoad, c.DedupeModeTrack:
	default:
		return fmt.Errorf("unsupported watermark dedupe mode %q", cfg.Watermark.DedupeMode)
	}
	switch cfg.Warehouse.LoadMode {
	case c.LoadModeFiles, c.LoadModePattern:
	default:
		return fmt.Errorf("unsupported warehouse load mode %q", cfg.Warehouse.LoadMode)
	}
	if cfg.Storage.ArchiveAfterLoad && cfg.Storage.ArchivePrefix == "" {
		return fmt.Errorf("please supply a value for storage archive prefix when archiveAfterLoad is set")
	}
	if cfg.Spotify.FeatureConcurrency < 1 {
		return fmt.Errorf("spotify featureConcurrency must be at least 1, got %v", cfg.Spotify.FeatureConcurrency)
	}
	if cfg.Spotify.MaxRetries < 0 || cfg.Spotify.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("spotify maxRetries must be >= 0 and requestTimeoutSeconds >= 1")
	}
	for _, p := range []string{cfg.Storage.TopTracksPrefix, cfg.Storage.AudioFeaturesPrefix} {
		if err := partition.ValidatePrefix(p); err != nil {
			return err
		}
	}
	if cfg.Storage.TopTracksPrefix == cfg.Storage.AudioFeaturesPrefix {
		return fmt.Errorf("storage prefixes for top tracks and audio features must differ")
	}
	for _, t := range []string{
		cfg.Warehouse.TopTracksTable,
		cfg.Warehouse.AudioFeaturesTable,
		cfg.Warehouse.LedgerTable,
		cfg.Warehouse.TopTracksStage,
		cfg.Warehouse.AudioFeaturesStage,
	} {
		if _, err := rdbms.ParseSchemaTable(t); err != nil {
			return err
		}
	}
	return nil
}

// Redacted returns a copy of cfg that is safe to print or log.
func (cfg *Config) Redacted() *Config {
	r := *cfg
	r.Spotify.ClientSecret = helper.Obfuscate(r.Spotify.ClientSecret)
	r.Spotify.RefreshToken = helper.Obfuscate(r.Spotify.RefreshToken)
	r.Warehouse.Snowflake.Password = helper.Obfuscate(r.Warehouse.Snowflake.Password)
	r.Warehouse.Dsn = rdbms.RedactDSN(r.Warehouse.Dsn)
	return &r
}
