package pipeline_test

import (
	"context"
	"sync"

	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/outcome"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/watermark"
	"golang.org/x/oauth2"
)

type fakeTokens struct {
	err     error
	calls   int
	block   chan struct{} // when set, Refresh signals entered then waits for block to close
	entered chan struct{}
}

func (f *fakeTokens) Refresh(ctx context.Context) (*oauth2.Token, error) {
	f.calls++
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}, nil
}

type fakeExtractor struct {
	mu          sync.Mutex
	tracks      outcome.Result[spotify.TrackRow]
	features    map[string]string // id to document; missing ids fail
	topCalls    int
	featureIDs  []string
	featureCall int
}

func (f *fakeExtractor) FetchTopTracks(ctx context.Context, token *oauth2.Token, limit int, timeRange string) outcome.Result[spotify.TrackRow] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topCalls++
	return f.tracks
}

func (f *fakeExtractor) FetchAudioFeatures(ctx context.Context, ids []string, token *oauth2.Token) spotify.FeatureBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.featureCall++
	f.featureIDs = append(f.featureIDs, ids...)
	var rows []spotify.AudioFeatureRow
	var failures []*spotify.PerItemFetchError
	for _, id := range ids {
		if doc, ok := f.features[id]; ok {
			rows = append(rows, spotify.AudioFeatureRow{TrackID: id, Document: doc})
		} else {
			failures = append(failures, &spotify.PerItemFetchError{TrackID: id, Err: context.DeadlineExceeded})
		}
	}
	return spotify.FeatureBatch{Result: outcome.Success(rows), Failures: failures}
}

type fakeResolver struct {
	res outcome.Result[watermark.TrackLoad]
}

func (f *fakeResolver) ResolveNewTrackIds(ctx context.Context) outcome.Result[watermark.TrackLoad] {
	return f.res
}

type fakeLoader struct {
	err      error
	staged   []string // patterns
	loaded   [][]partition.Key
	tables   []string
	rowCount int64
}

func (f *fakeLoader) LoadStaged(ctx context.Context, spec loader.TableSpec, pattern string) (loader.LoadReport, error) {
	f.staged = append(f.staged, pattern)
	f.tables = append(f.tables, spec.Table.String())
	return loader.LoadReport{Table: spec.Table.String(), Mode: "pattern", RowsLoaded: f.rowCount}, f.err
}

func (f *fakeLoader) LoadPartitions(ctx context.Context, spec loader.TableSpec, keys []partition.Key) (loader.LoadReport, error) {
	f.loaded = append(f.loaded, keys)
	f.tables = append(f.tables, spec.Table.String())
	r := loader.LoadReport{Table: spec.Table.String(), Mode: "files", RowsLoaded: f.rowCount}
	for _, k := range keys {
		r.Files = append(r.Files, k.String())
	}
	return r, f.err
}
