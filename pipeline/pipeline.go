// Package pipeline runs the top tracks and audio features flows end to end.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/outcome"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/stats"
	"github.com/relloyd/trackpipe/watermark"
	"golang.org/x/oauth2"
)

// ErrRunInProgress is returned when a run of the same pipeline is already in flight.
var ErrRunInProgress = errors.New("a run of this pipeline is already in progress")

type TokenRefresher interface {
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

type Extractor interface {
	FetchTopTracks(ctx context.Context, token *oauth2.Token, limit int, timeRange string) outcome.Result[spotify.TrackRow]
	FetchAudioFeatures(ctx context.Context, ids []string, token *oauth2.Token) spotify.FeatureBatch
}

type Resolver interface {
	ResolveNewTrackIds(ctx context.Context) outcome.Result[watermark.TrackLoad]
}

type Loader interface {
	LoadStaged(ctx context.Context, spec loader.TableSpec, pattern string) (loader.LoadReport, error)
	LoadPartitions(ctx context.Context, spec loader.TableSpec, keys []partition.Key) (loader.LoadReport, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Log            logger.Logger
	Tokens         TokenRefresher
	Extractor      Extractor
	Resolver       Resolver
	TracksWriter   *partition.Writer[spotify.TrackRow]
	FeaturesWriter *partition.Writer[spotify.AudioFeatureRow]
	Loader         Loader
	TracksSpec     loader.TableSpec
	FeaturesSpec   loader.TableSpec
	LoadMode       string // files or pattern
	FilePattern    string // pattern mode only
	TopTracksLimit int
	TimeRange      string
	Filter         *TrackFilter
	Registry       *stats.RunRegistry
}

type Pipeline struct {
	Deps
	muTopTracks     sync.Mutex
	muAudioFeatures sync.Mutex
}

func New(d Deps) (*Pipeline, error) {
	if d.Log == nil || d.Tokens == nil || d.Extractor == nil || d.Resolver == nil || d.Loader == nil ||
		d.TracksWriter == nil || d.FeaturesWriter == nil || d.Registry == nil {
		return nil, errors.New("pipeline is missing a dependency")
	}
	switch d.LoadMode {
	case constants.LoadModeFiles, constants.LoadModePattern:
	default:
		return nil, errors.Errorf("unsupported load mode %q", d.LoadMode)
	}
	if d.TopTracksLimit == 0 {
		d.TopTracksLimit = constants.SpotifyTopTracksLimit
	}
	if d.TimeRange == "" {
		d.TimeRange = constants.SpotifyTimeRange
	}
	return &Pipeline{Deps: d}, nil
}

// TopTracksReport is the outcome of one top tracks run.
type TopTracksReport struct {
	RunID    string             `json:"runId"`
	Status   outcome.Status     `json:"status"`
	Fetched  int                `json:"fetched"`
	Records  int                `json:"records"` // rows written after filtering
	Key      string             `json:"key,omitempty"`
	Load     *loader.LoadReport `json:"load,omitempty"`
	Duration string             `json:"duration"`
}

// AudioFeaturesReport is the outcome of one audio features run.
type AudioFeaturesReport struct {
	RunID    string             `json:"runId"`
	Status   outcome.Status     `json:"status"`
	Resolved int                `json:"resolved"`
	Records  int                `json:"records"`
	Skipped  []string           `json:"skipped,omitempty"` // ids whose fetch failed
	Key      string             `json:"key,omitempty"`
	Load     *loader.LoadReport `json:"load,omitempty"`
	Duration string             `json:"duration"`
}

// AllReport is the outcome of RunAll.
type AllReport struct {
	TopTracks     *TopTracksReport     `json:"topTracks,omitempty"`
	AudioFeatures *AudioFeaturesReport `json:"audioFeatures,omitempty"`
}

// RunTopTracks refreshes a token, fetches top tracks, writes them to a partition and loads it.
// An Empty or Failed fetch is reported in the report status; a Failed fetch also returns its error.
// Auth, storage and load errors are returned as their typed errors.
func (p *Pipeline) RunTopTracks(ctx context.Context) (report TopTracksReport, err error) {
	if !p.muTopTracks.TryLock() {
		return report, ErrRunInProgress
	}
	defer p.muTopTracks.Unlock()
	start := time.Now()
	report.RunID = p.Registry.Start(constants.PipelineTopTracks)
	log := p.Log.WithField("runId", report.RunID).WithField("pipeline", constants.PipelineTopTracks)
	defer func() {
		report.Duration = time.Since(start).String()
		p.finish(constants.PipelineTopTracks, report.RunID, report.Status, report, err, start)
	}()
	token, err := p.Tokens.Refresh(ctx)
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	res := p.Extractor.FetchTopTracks(ctx, token, p.TopTracksLimit, p.TimeRange)
	report.Status = res.Status
	report.Fetched = res.Len()
	if res.IsFailed() {
		return report, res.Err
	}
	rows, err := p.Filter.Apply(res.Rows)
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	if len(rows) == 0 {
		log.Info("no tracks to write")
		report.Status = outcome.Empty
		return report, nil
	}
	report.Records = len(rows)
	key, err := p.TracksWriter.Write(ctx, rows)
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	report.Key = key.String()
	load, err := p.load(ctx, p.TracksSpec, key)
	report.Load = &load
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	log.Info("top tracks run complete: ", report.Records, " records")
	return report, nil
}

// RunAudioFeatures refreshes a token, resolves tracks newer than the watermark, fetches their audio features, writes
// them to a partition and loads it. Per-item failures are reported as skipped ids.
func (p *Pipeline) RunAudioFeatures(ctx context.Context) (report AudioFeaturesReport, err error) {
	if !p.muAudioFeatures.TryLock() {
		return report, ErrRunInProgress
	}
	defer p.muAudioFeatures.Unlock()
	start := time.Now()
	report.RunID = p.Registry.Start(constants.PipelineAudioFeatures)
	log := p.Log.WithField("runId", report.RunID).WithField("pipeline", constants.PipelineAudioFeatures)
	defer func() {
		report.Duration = time.Since(start).String()
		p.finish(constants.PipelineAudioFeatures, report.RunID, report.Status, report, err, start)
	}()
	token, err := p.Tokens.Refresh(ctx)
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	resolved := p.Resolver.ResolveNewTrackIds(ctx)
	report.Status = resolved.Status
	report.Resolved = resolved.Len()
	if !resolved.IsOk() { // nothing new, or the warehouse could not be read
		return report, resolved.Err
	}
	batch := p.Extractor.FetchAudioFeatures(ctx, uniqueIDs(watermark.TrackIDs(resolved.Rows)), token)
	for _, f := range batch.Failures {
		report.Skipped = append(report.Skipped, f.TrackID)
	}
	stats.AddItemFailures(len(batch.Failures))
	report.Status = batch.Status
	report.Records = batch.Len()
	if !batch.IsOk() {
		log.Warn("no audio features were retrieved for ", report.Resolved, " resolved tracks")
		return report, nil
	}
	key, err := p.FeaturesWriter.Write(ctx, batch.Rows)
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	report.Key = key.String()
	load, err := p.load(ctx, p.FeaturesSpec, key)
	report.Load = &load
	if err != nil {
		report.Status = outcome.Failed
		return report, err
	}
	log.Info("audio features run complete: ", report.Records, " records, ", len(report.Skipped), " skipped")
	return report, nil
}

// RunAll runs top tracks then audio features. Audio features still run when there were no new
// top tracks or the top tracks fetch failed upstream, but not after a fatal top tracks error.
// A fatal audio features error is returned in preference to a soft top tracks error.
func (p *Pipeline) RunAll(ctx context.Context) (AllReport, error) {
	var all AllReport
	tt, ttErr := p.RunTopTracks(ctx)
	all.TopTracks = &tt
	if ttErr != nil && !isSoftFailure(ttErr) {
		return all, errors.Wrap(ttErr, "top tracks")
	}
	af, err := p.RunAudioFeatures(ctx)
	all.AudioFeatures = &af
	if err != nil {
		return all, errors.Wrap(err, "audio features")
	}
	if ttErr != nil {
		return all, errors.Wrap(ttErr, "top tracks")
	}
	return all, nil
}

// isSoftFailure reports whether err leaves nothing to write but does not stop other pipelines.
func isSoftFailure(err error) bool {
	var upErr *spotify.UpstreamFetchError
	return errors.As(err, &upErr)
}

func (p *Pipeline) load(ctx context.Context, spec loader.TableSpec, key partition.Key) (loader.LoadReport, error) {
	if p.LoadMode == constants.LoadModePattern {
		return p.Loader.LoadStaged(ctx, spec, p.FilePattern)
	}
	return p.Loader.LoadPartitions(ctx, spec, []partition.Key{key})
}

func (p *Pipeline) finish(pipeline string, runID string, status outcome.Status, report interface{}, err error, start time.Time) {
	label := status.String()
	if err != nil {
		label = outcome.Failed.String()
	}
	stats.ObserveRun(pipeline, label, time.Since(start))
	p.Registry.Finish(runID, report, err)
}

// uniqueIDs drops repeated ids, keeping first occurrences in order. In load mode the same track can
// appear once per load; its features are fetched once.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	retval := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			retval = append(retval, id)
		}
	}
	return retval
}
