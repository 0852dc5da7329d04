package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/trackpipe/auth"
	"github.com/relloyd/trackpipe/aws/s3"
	"github.com/relloyd/trackpipe/config"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/gcp/gcs"
	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/rdbms"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/stats"
	"github.com/relloyd/trackpipe/watermark"
)

// NewStorage returns the object store named by cfg.Storage.Type.
// The bucket may carry a root prefix, e.g. s3://bucket/root or gs://bucket/root.
func NewStorage(ctx context.Context, log logger.Logger, cfg *config.Config) (partition.Storage, error) {
	switch cfg.Storage.Type {
	case constants.ConnectionTypeS3:
		b, err := s3.ParseDSN(cfg.Storage.Bucket, cfg.Storage.Region)
		if err != nil {
			return nil, err
		}
		client, err := s3.NewClient(log, b.Name, b.Region, b.Prefix)
		if err != nil {
			return nil, err
		}
		return client, nil
	case constants.ConnectionTypeGCS:
		bucket, prefix := splitBucket(strings.TrimPrefix(cfg.Storage.Bucket, "gs://"))
		client, err := gcs.NewClient(ctx, log, bucket, prefix)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, errors.Errorf("unsupported storage type %q", cfg.Storage.Type)
}

func splitBucket(s string) (bucket string, prefix string) {
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// OpenWarehouse connects to the warehouse DSN.
func OpenWarehouse(ctx context.Context, log logger.Logger, cfg *config.Config) (rdbms.Connector, error) {
	conn, err := rdbms.OpenConnection(ctx, log, cfg.Warehouse.Dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to the warehouse")
	}
	return conn, nil
}

// Build wires a Pipeline from cfg. The caller owns conn and store.
func Build(log logger.Logger, cfg *config.Config, conn rdbms.Connector, store partition.Storage, registry *stats.RunRegistry) (*Pipeline, error) {
	timeout := time.Duration(cfg.Spotify.RequestTimeoutSeconds) * time.Second
	retryInitial := constants.SpotifyRetryInitialIntervalMs * time.Millisecond
	tokens, err := auth.NewManager(log, auth.Config{
		ClientID:             cfg.Spotify.ClientID,
		ClientSecret:         cfg.Spotify.ClientSecret,
		RefreshToken:         cfg.Spotify.RefreshToken,
		TokenURL:             cfg.Spotify.TokenURL,
		Timeout:              timeout,
		MaxRetries:           cfg.Spotify.MaxRetries,
		RetryInitialInterval: retryInitial,
	})
	if err != nil {
		return nil, errors.Wrap(err, "token manager")
	}
	extractor, err := spotify.NewClient(log, spotify.Config{
		APIBaseURL:           cfg.Spotify.APIBaseURL,
		Timeout:              timeout,
		MaxRetries:           cfg.Spotify.MaxRetries,
		RetryInitialInterval: retryInitial,
		FeatureConcurrency:   cfg.Spotify.FeatureConcurrency,
		RequestsPerSecond:    cfg.Spotify.RequestsPerSecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "spotify client")
	}
	topTracks := rdbms.MustParseSchemaTable(cfg.Warehouse.TopTracksTable) // validated by config.Validate
	audioFeatures := rdbms.MustParseSchemaTable(cfg.Warehouse.AudioFeaturesTable)
	resolver, err := watermark.NewResolver(log, watermark.NewSnowflakeStore(log, conn, topTracks, audioFeatures), cfg.Watermark.DedupeMode)
	if err != nil {
		return nil, err
	}
	tracksWriter, err := partition.NewWriter[spotify.TrackRow](log, store, cfg.Storage.TopTracksPrefix)
	if err != nil {
		return nil, err
	}
	featuresWriter, err := partition.NewWriter[spotify.AudioFeatureRow](log, store, cfg.Storage.AudioFeaturesPrefix)
	if err != nil {
		return nil, err
	}
	ldr, err := loader.NewSnowflakeLoader(loader.SnowflakeLoaderConfig{
		Log:           log,
		Db:            conn,
		Ledger:        loader.NewLedger(log, rdbms.MustParseSchemaTable(cfg.Warehouse.LedgerTable)),
		Storage:       store,
		Archive:       cfg.Storage.ArchiveAfterLoad,
		ArchivePrefix: cfg.Storage.ArchivePrefix,
	})
	if err != nil {
		return nil, err
	}
	filter, err := NewTrackFilter(cfg.Spotify.TrackFilter)
	if err != nil {
		return nil, err
	}
	return New(Deps{
		Log:            log,
		Tokens:         tokens,
		Extractor:      extractor,
		Resolver:       resolver,
		TracksWriter:   tracksWriter,
		FeaturesWriter: featuresWriter,
		Loader:         ldr,
		TracksSpec: loader.TopTracksSpec(topTracks,
			rdbms.MustParseSchemaTable(cfg.Warehouse.TopTracksStage), cfg.Storage.TopTracksPrefix),
		FeaturesSpec: loader.AudioFeaturesSpec(audioFeatures,
			rdbms.MustParseSchemaTable(cfg.Warehouse.AudioFeaturesStage), cfg.Storage.AudioFeaturesPrefix),
		LoadMode:       cfg.Warehouse.LoadMode,
		FilePattern:    cfg.Warehouse.FilePattern,
		TopTracksLimit: cfg.Spotify.TopTracksLimit,
		TimeRange:      cfg.Spotify.TimeRange,
		Filter:         filter,
		Registry:       registry,
	})
}
