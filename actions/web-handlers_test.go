package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/relloyd/trackpipe/auth"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/outcome"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/stats"
	"github.com/relloyd/trackpipe/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	tt    pipeline.TopTracksReport
	ttErr error
	af    pipeline.AudioFeaturesReport
	afErr error
}

func (f *fakeRunner) RunTopTracks(ctx context.Context) (pipeline.TopTracksReport, error) {
	return f.tt, f.ttErr
}

func (f *fakeRunner) RunAudioFeatures(ctx context.Context) (pipeline.AudioFeaturesReport, error) {
	return f.af, f.afErr
}

func newTestServer(t *testing.T, runner Runner) (*httptest.Server, *stats.RunRegistry, chan string) {
	t.Helper()
	log := logger.NewLogger("test", "error", false)
	registry := stats.NewRunRegistry(log, 10)
	stop := make(chan string, 1)
	srv := httptest.NewServer(NewRouter(log, &WebServerConfig{Port: 1, Runner: runner, Registry: registry}, stop))
	t.Cleanup(srv.Close)
	return srv, registry, stop
}

func post(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRunTopTracksResponses(t *testing.T) {
	loadErr := &loader.WarehouseLoadError{Table: constants.TableTopTracks, Err: errors.New("stage missing")}
	cases := []struct {
		name     string
		runner   *fakeRunner
		code     int
		field    string
		contains string
	}{
		{"ok", &fakeRunner{tt: pipeline.TopTracksReport{Status: outcome.Ok, Records: 25}}, http.StatusOK, "status", "Uploaded to S3 and Snowflake"},
		{"empty", &fakeRunner{tt: pipeline.TopTracksReport{Status: outcome.Empty}}, http.StatusNotFound, "error", "No tracks found"},
		{"upstream", &fakeRunner{ttErr: &spotify.UpstreamFetchError{Endpoint: "top-tracks", StatusCode: 503}}, http.StatusBadGateway, "error", "503"},
		{"auth", &fakeRunner{ttErr: &auth.AuthError{StatusCode: 400, Body: "invalid_grant"}}, http.StatusInternalServerError, "error", "invalid_grant"},
		{"storage", &fakeRunner{ttErr: &partition.StorageWriteError{URL: "s3://b/k", Err: errors.New("denied")}}, http.StatusInternalServerError, "error", "denied"},
		{"load", &fakeRunner{ttErr: loadErr}, http.StatusInternalServerError, "error", "Uploaded to S3 but failed to copy into Snowflake: "},
		{"busy", &fakeRunner{ttErr: pipeline.ErrRunInProgress}, http.StatusConflict, "error", "in progress"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, tc.runner)
			code, body := post(t, srv.URL+"/run-top-tracks")
			assert.Equal(t, tc.code, code)
			assert.Contains(t, body[tc.field], tc.contains)
		})
	}
}

func TestRunTopTracksReportsRecords(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{tt: pipeline.TopTracksReport{Status: outcome.Ok, Records: 25, RunID: "r1"}})
	_, body := post(t, srv.URL+"/run-top-tracks")
	assert.EqualValues(t, 25, body["records"])
	assert.Equal(t, "r1", body["runId"])
}

func TestRunAudioFeaturesResponses(t *testing.T) {
	t.Run("ok with skipped ids", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &fakeRunner{af: pipeline.AudioFeaturesReport{
			Status: outcome.Ok, Resolved: 3, Records: 2, Skipped: []string{"t3"},
		}})
		code, body := post(t, srv.URL+"/run-audio-features")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Audio features retrieved successfully", body["status"])
		assert.EqualValues(t, 2, body["records"])
		assert.EqualValues(t, 1, body["skipped"])
	})
	t.Run("nothing new", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &fakeRunner{af: pipeline.AudioFeaturesReport{Status: outcome.Empty}})
		code, body := post(t, srv.URL+"/run-audio-features")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "No recent top_tracks data found in Snowflake", body["error"])
	})
	t.Run("every id skipped", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &fakeRunner{af: pipeline.AudioFeaturesReport{
			Status: outcome.Empty, Resolved: 2, Skipped: []string{"t1", "t2"},
		}})
		code, body := post(t, srv.URL+"/run-audio-features")
		assert.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 0, body["records"])
		assert.EqualValues(t, 2, body["skipped"])
	})
	t.Run("warehouse query failure", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &fakeRunner{afErr: &watermark.WarehouseQueryError{Query: "SELECT", Err: errors.New("timeout")}})
		code, _ := post(t, srv.URL+"/run-audio-features")
		assert.Equal(t, http.StatusBadGateway, code)
	})
}

func TestRunEndpointsRequirePost(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/run-top-tracks")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunsEndpoints(t *testing.T) {
	srv, registry, _ := newTestServer(t, &fakeRunner{})
	id := registry.Start(constants.PipelineTopTracks)
	registry.Finish(id, map[string]int{"records": 1}, nil)

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	var list ResponseRunList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Runs, 1)
	assert.Equal(t, id, list.Runs[0].RunID)

	resp, err = http.Get(srv.URL + "/runs/" + id)
	require.NoError(t, err)
	var status ResponseRunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, status.Run)
	assert.Equal(t, stats.RunStatusComplete, status.Run.Status)

	resp, err = http.Get(srv.URL + "/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthStopAndMetrics(t *testing.T) {
	srv, _, stop := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stop")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "stop", <-stop)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}

func TestRunWebServerValidatesConfig(t *testing.T) {
	log := logger.NewLogger("test", "error", false)
	assert.Error(t, RunWebServer(log, nil))
	assert.Error(t, RunWebServer(log, &WebServerConfig{Port: 8080}))
}
