package constants

// Partitioned storage

const (
	PartitionTimeFormat      = "20060102_150405" // token embedded in staged file names
	PartitionTimeFormatRegex = "[0-9]{8}_[0-9]{6}"
	PartitionTimeFormatSql   = "YYYYMMDD_HH24MISS" // Snowflake equivalent of PartitionTimeFormat
	PartitionFileExt         = ".parquet"
	PartitionFilePattern     = `.*\.parquet`
	PartitionContentType     = "application/octet-stream"
	PrefixTopTracks          = "top-tracks"
	PrefixAudioFeatures      = "audio-features"
	PrefixArchive            = "archive"
	DefaultBucket            = "spotify-data-bucket"
	DefaultRegion            = "eu-west-2"
)

// Upstream API

const (
	SpotifyTokenURL               = "https://accounts.spotify.com/api/token"
	SpotifyAPIBaseURL             = "https://api.spotify.com/v1"
	SpotifyTopTracksLimit         = 25
	SpotifyTimeRange              = "short_term"
	SpotifyRequestTimeoutSeconds  = 10
	SpotifyMaxRetries             = 3
	SpotifyFeatureConcurrency     = 1
	SpotifyRetryInitialIntervalMs = 250
)

// Warehouse

const (
	TableTopTracks          = "raw.spotify.top_tracks"
	TableAudioFeatures      = "raw.spotify.audio_features"
	TableLoadLedger         = "raw.spotify.load_ledger"
	StageTopTracks          = "raw.spotify.spotify_top_tracks_stage"
	StageAudioFeatures      = "raw.spotify.spotify_audio_features_stage"
	DedupeModeLoad          = "load"  // distinct (track_id, loaded_at)
	DedupeModeTrack         = "track" // distinct track_id, latest loaded_at
	LoadModeFiles           = "files"
	LoadModePattern         = "pattern"
	ConnectionTypeS3        = "s3"
	ConnectionTypeGCS       = "gcs"
	ConnectionTypeSnowflake = "snowflake"
)

// Process

const (
	AppName                 = "trackpipe"
	EnvVarPrefix            = "TP" // prefixed for environment variables in twelveFactorMode
	ConfigDir               = ".trackpipe"
	ConfigFileName          = "config.yaml"
	PipelineTopTracks       = "top-tracks"
	PipelineAudioFeatures   = "audio-features"
	ServerPortDefault       = 8080
	ServerShutdownSeconds   = 15
	ServerReadSeconds       = 15
	ServerWriteSeconds      = 300 // runs respond when they finish
	ServerIdleSeconds       = 60
	RunRegistryMaxCompleted = 100
)
