package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/trackpipe/auth"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/outcome"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/rdbms"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/stats"
	"github.com/relloyd/trackpipe/watermark"
)

// tickingClock returns a later second on every call so consecutive writes never share a key.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var _ = Describe("Pipeline", func() {
	var (
		ctx       context.Context
		log       logger.Logger
		store     *partition.MemoryStorage
		tokens    *fakeTokens
		extractor *fakeExtractor
		resolver  *fakeResolver
		ldr       *fakeLoader
		registry  *stats.RunRegistry
		deps      pipeline.Deps
		tracks    []spotify.TrackRow
	)

	build := func() *pipeline.Pipeline {
		p, err := pipeline.New(deps)
		Expect(err).ToNot(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		log = logger.NewLogger("test", "error", false)
		store = partition.NewMemoryStorage(constants.DefaultBucket)
		clock := tickingClock()
		tw, err := partition.NewWriter[spotify.TrackRow](log, store, constants.PrefixTopTracks, partition.WithClock(clock))
		Expect(err).ToNot(HaveOccurred())
		fw, err := partition.NewWriter[spotify.AudioFeatureRow](log, store, constants.PrefixAudioFeatures, partition.WithClock(clock))
		Expect(err).ToNot(HaveOccurred())
		tracks = []spotify.TrackRow{
			{ArtistsName: "X", TrackName: "A", TrackID: "t1", Popularity: 80},
			{ArtistsName: "Y, Z", TrackName: "B", TrackID: "t2", Popularity: 40},
		}
		tokens = &fakeTokens{}
		extractor = &fakeExtractor{
			tracks:   outcome.Success(tracks),
			features: map[string]string{"t1": `{"id":"t1","energy":0.5}`, "t2": `{"id":"t2","energy":0.9}`},
		}
		resolver = &fakeResolver{res: outcome.Success([]watermark.TrackLoad{
			{TrackID: "t1", LoadedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{TrackID: "t2", LoadedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{TrackID: "t1", LoadedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		})}
		ldr = &fakeLoader{rowCount: 2}
		registry = stats.NewRunRegistry(log, constants.RunRegistryMaxCompleted)
		deps = pipeline.Deps{
			Log:            log,
			Tokens:         tokens,
			Extractor:      extractor,
			Resolver:       resolver,
			TracksWriter:   tw,
			FeaturesWriter: fw,
			Loader:         ldr,
			TracksSpec: loader.TopTracksSpec(rdbms.MustParseSchemaTable(constants.TableTopTracks),
				rdbms.MustParseSchemaTable(constants.StageTopTracks), constants.PrefixTopTracks),
			FeaturesSpec: loader.AudioFeaturesSpec(rdbms.MustParseSchemaTable(constants.TableAudioFeatures),
				rdbms.MustParseSchemaTable(constants.StageAudioFeatures), constants.PrefixAudioFeatures),
			LoadMode: constants.LoadModeFiles,
			Registry: registry,
		}
	})

	Describe("New", func() {
		It("rejects a missing dependency", func() {
			deps.Loader = nil
			_, err := pipeline.New(deps)
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown load mode", func() {
			deps.LoadMode = "bulk"
			_, err := pipeline.New(deps)
			Expect(err).To(MatchError(ContainSubstring("bulk")))
		})

		It("defaults the limit and time range", func() {
			p := build()
			Expect(p.TopTracksLimit).To(Equal(constants.SpotifyTopTracksLimit))
			Expect(p.TimeRange).To(Equal(constants.SpotifyTimeRange))
		})
	})

	Describe("RunTopTracks", func() {
		It("writes one partition with every fetched row and loads exactly that key", func() {
			report, err := build().RunTopTracks(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Status).To(Equal(outcome.Ok))
			Expect(report.Fetched).To(Equal(2))
			Expect(report.Records).To(Equal(2))
			Expect(store.Objects).To(HaveLen(1))
			key, err := partition.ParseKey(report.Key)
			Expect(err).ToNot(HaveOccurred())
			Expect(key.Prefix).To(Equal(constants.PrefixTopTracks))
			got, err := deps.TracksWriter.Read(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(tracks))
			Expect(ldr.loaded).To(Equal([][]partition.Key{{key}}))
			Expect(ldr.tables).To(Equal([]string{constants.TableTopTracks}))
			Expect(report.Load).ToNot(BeNil())
			Expect(report.Load.RowsLoaded).To(BeEquivalentTo(2))
		})

		It("records the run in the registry", func() {
			report, err := build().RunTopTracks(ctx)
			Expect(err).ToNot(HaveOccurred())
			ri, ok := registry.Load(report.RunID)
			Expect(ok).To(BeTrue())
			Expect(ri.Pipeline).To(Equal(constants.PipelineTopTracks))
			Expect(ri.Status).To(Equal(stats.RunStatusComplete))
		})

		It("aborts before extraction when the token refresh is rejected", func() {
			tokens.err = &auth.AuthError{StatusCode: 400, Body: `{"error":"invalid_grant"}`}
			report, err := build().RunTopTracks(ctx)
			var authErr *auth.AuthError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(report.Status).To(Equal(outcome.Failed))
			Expect(extractor.topCalls).To(Equal(0))
			Expect(store.Objects).To(BeEmpty())
			Expect(ldr.loaded).To(BeEmpty())
			ri, _ := registry.Load(report.RunID)
			Expect(ri.Status).To(Equal(stats.RunStatusCompleteWithError))
		})

		It("writes and loads nothing when there are no tracks", func() {
			extractor.tracks = outcome.Success[spotify.TrackRow](nil)
			report, err := build().RunTopTracks(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Status).To(Equal(outcome.Empty))
			Expect(store.Objects).To(BeEmpty())
			Expect(ldr.loaded).To(BeEmpty())
		})

		It("returns the upstream error without writing when the fetch fails", func() {
			extractor.tracks = outcome.Failure[spotify.TrackRow](&spotify.UpstreamFetchError{Endpoint: "top-tracks", StatusCode: 503})
			report, err := build().RunTopTracks(ctx)
			var upErr *spotify.UpstreamFetchError
			Expect(errors.As(err, &upErr)).To(BeTrue())
			Expect(report.Status).To(Equal(outcome.Failed))
			Expect(store.Objects).To(BeEmpty())
		})

		It("returns the load error after the file was written", func() {
			ldr.err = &loader.WarehouseLoadError{Table: constants.TableTopTracks, Err: errors.New("boom")}
			report, err := build().RunTopTracks(ctx)
			var loadErr *loader.WarehouseLoadError
			Expect(errors.As(err, &loadErr)).To(BeTrue())
			Expect(report.Status).To(Equal(outcome.Failed))
			Expect(report.Key).ToNot(BeEmpty())
			Expect(store.Objects).To(HaveKey(report.Key))
		})

		It("returns a storage write error and does not load", func() {
			store.PutErr = errors.New("access denied")
			_, err := build().RunTopTracks(ctx)
			var wErr *partition.StorageWriteError
			Expect(errors.As(err, &wErr)).To(BeTrue())
			Expect(ldr.loaded).To(BeEmpty())
		})

		It("loads by pattern in pattern mode", func() {
			deps.LoadMode = constants.LoadModePattern
			deps.FilePattern = constants.PartitionFilePattern
			_, err := build().RunTopTracks(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ldr.staged).To(Equal([]string{constants.PartitionFilePattern}))
			Expect(ldr.loaded).To(BeEmpty())
		})

		It("keeps only the rows that pass the track filter", func() {
			f, err := pipeline.NewTrackFilter(`{">=": [{"var": "popularity"}, 50]}`)
			Expect(err).ToNot(HaveOccurred())
			deps.Filter = f
			report, err := build().RunTopTracks(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Fetched).To(Equal(2))
			Expect(report.Records).To(Equal(1))
		})

		It("refuses a second concurrent run", func() {
			tokens.block = make(chan struct{})
			tokens.entered = make(chan struct{}, 1)
			p := build()
			done := make(chan error, 1)
			go func() {
				_, err := p.RunTopTracks(ctx)
				done <- err
			}()
			Eventually(tokens.entered).Should(Receive())
			_, err := p.RunTopTracks(ctx)
			Expect(err).To(MatchError(pipeline.ErrRunInProgress))
			close(tokens.block)
			Eventually(done).Should(Receive(BeNil()))
		})
	})

	Describe("RunAudioFeatures", func() {
		It("fetches each resolved track once and loads the written key", func() {
			report, err := build().RunAudioFeatures(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Status).To(Equal(outcome.Ok))
			Expect(report.Resolved).To(Equal(3))
			Expect(report.Records).To(Equal(2))
			Expect(extractor.featureIDs).To(Equal([]string{"t1", "t2"}))
			Expect(ldr.tables).To(Equal([]string{constants.TableAudioFeatures}))
			key, err := partition.ParseKey(report.Key)
			Expect(err).ToNot(HaveOccurred())
			got, err := deps.FeaturesWriter.Read(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].Document).To(Equal(`{"id":"t1","energy":0.5}`))
		})

		It("refreshes the token once and fetches nothing when there are no new tracks", func() {
			resolver.res = outcome.Success[watermark.TrackLoad](nil)
			report, err := build().RunAudioFeatures(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Status).To(Equal(outcome.Empty))
			Expect(tokens.calls).To(Equal(1))
			Expect(extractor.featureCall).To(Equal(0))
			Expect(store.Objects).To(BeEmpty())
		})

		It("returns the auth error even when there are no new tracks", func() {
			tokens.err = &auth.AuthError{StatusCode: 400, Body: `{"error":"invalid_grant"}`}
			resolver.res = outcome.Success[watermark.TrackLoad](nil)
			report, err := build().RunAudioFeatures(ctx)
			var authErr *auth.AuthError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(report.Status).To(Equal(outcome.Failed))
			Expect(tokens.calls).To(Equal(1))
			Expect(extractor.featureCall).To(Equal(0))
		})

		It("returns the warehouse query error when the watermark cannot be read", func() {
			resolver.res = outcome.Failure[watermark.TrackLoad](&watermark.WarehouseQueryError{Query: "SELECT", Err: errors.New("down")})
			report, err := build().RunAudioFeatures(ctx)
			var qErr *watermark.WarehouseQueryError
			Expect(errors.As(err, &qErr)).To(BeTrue())
			Expect(report.Status).To(Equal(outcome.Failed))
			Expect(extractor.featureCall).To(Equal(0))
		})

		It("reports skipped ids and writes the rest", func() {
			delete(extractor.features, "t2")
			report, err := build().RunAudioFeatures(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Records).To(Equal(1))
			Expect(report.Skipped).To(Equal([]string{"t2"}))
			Expect(store.Objects).To(HaveLen(1))
		})

		It("writes nothing when every id fails", func() {
			extractor.features = map[string]string{}
			report, err := build().RunAudioFeatures(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Status).To(Equal(outcome.Empty))
			Expect(report.Skipped).To(ConsistOf("t1", "t2"))
			Expect(store.Objects).To(BeEmpty())
			Expect(ldr.loaded).To(BeEmpty())
		})
	})

	Describe("RunAll", func() {
		It("runs both pipelines in order", func() {
			all, err := build().RunAll(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(all.TopTracks.Status).To(Equal(outcome.Ok))
			Expect(all.AudioFeatures.Status).To(Equal(outcome.Ok))
			Expect(ldr.tables).To(Equal([]string{constants.TableTopTracks, constants.TableAudioFeatures}))
			Expect(store.Objects).To(HaveLen(2))
		})

		It("stops after a top tracks error", func() {
			tokens.err = &auth.AuthError{StatusCode: 401}
			all, err := build().RunAll(ctx)
			Expect(err).To(MatchError(ContainSubstring("top tracks")))
			Expect(all.AudioFeatures).To(BeNil())
		})

		It("stops after a top tracks storage error", func() {
			store.PutErr = errors.New("bucket gone")
			all, err := build().RunAll(ctx)
			var wErr *partition.StorageWriteError
			Expect(errors.As(err, &wErr)).To(BeTrue())
			Expect(all.AudioFeatures).To(BeNil())
		})

		It("still runs audio features after an upstream top tracks failure", func() {
			extractor.tracks = outcome.Failure[spotify.TrackRow](&spotify.UpstreamFetchError{Endpoint: "top-tracks", StatusCode: 503})
			all, err := build().RunAll(ctx)
			var upErr *spotify.UpstreamFetchError
			Expect(errors.As(err, &upErr)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("top tracks")))
			Expect(all.TopTracks.Status).To(Equal(outcome.Failed))
			Expect(all.AudioFeatures).ToNot(BeNil())
			Expect(all.AudioFeatures.Status).To(Equal(outcome.Ok))
			Expect(ldr.tables).To(Equal([]string{constants.TableAudioFeatures}))
			Expect(store.Objects).To(HaveLen(1))
		})
	})
})
