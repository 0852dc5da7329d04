package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relloyd/trackpipe/loader"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/outcome"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/spotify"
	"github.com/relloyd/trackpipe/stats"
	"github.com/relloyd/trackpipe/watermark"
)

const (
	msgTopTracksLoaded      = "Uploaded to S3 and Snowflake"
	msgNoTracks             = "No tracks found"
	msgLoadFailed           = "Uploaded to S3 but failed to copy into Snowflake"
	msgAudioFeaturesFetched = "Audio features retrieved successfully"
	msgNoRecentTopTracks    = "No recent top_tracks data found in Snowflake"
	statusOk                = "ok"
	statusError             = "error"
	headerContentType       = "Content-Type"
	contentTypeJSON         = "application/json"
)

type ResponseSimple struct {
	Status string `json:"status"`
}

type ResponseError struct {
	Error string `json:"error"`
	RunID string `json:"runId,omitempty"`
}

type ResponseTopTracks struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	RunID   string `json:"runId"`
	Key     string `json:"key"`
}

type ResponseAudioFeatures struct {
	Status     string   `json:"status"`
	Records    int      `json:"records"`
	Skipped    int      `json:"skipped"`
	SkippedIds []string `json:"skippedIds,omitempty"`
	RunID      string   `json:"runId"`
	Key        string   `json:"key,omitempty"`
}

type ResponseRunList struct {
	Status string          `json:"status"`
	Runs   []stats.RunInfo `json:"runs"`
}

type ResponseRunStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Run     *stats.RunInfo `json:"run,omitempty"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseSimple{Status: statusOk})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case chanStop <- "stop":
			log.Info("Stop signal sent")
		default: // a stop is already pending
		}
		respond(log, w, http.StatusOK, ResponseSimple{Status: statusOk})
	}
}

// GetHandlerRunTopTracks runs the top tracks pipeline and responds when it finishes.
func GetHandlerRunTopTracks(log logger.Logger, p Runner) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := p.RunTopTracks(r.Context())
		if err != nil {
			respondWithError(log, w, report.RunID, err)
			return
		}
		if report.Status == outcome.Empty {
			respond(log, w, http.StatusNotFound, ResponseError{Error: msgNoTracks, RunID: report.RunID})
			return
		}
		respond(log, w, http.StatusOK, ResponseTopTracks{
			Status:  msgTopTracksLoaded,
			Records: report.Records,
			RunID:   report.RunID,
			Key:     report.Key,
		})
	}
}

// GetHandlerRunAudioFeatures runs the audio features pipeline and responds when it finishes.
// Ids whose fetch failed are counted in skipped; the run still succeeds.
func GetHandlerRunAudioFeatures(log logger.Logger, p Runner) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := p.RunAudioFeatures(r.Context())
		if err != nil {
			respondWithError(log, w, report.RunID, err)
			return
		}
		if report.Status == outcome.Empty && report.Resolved == 0 {
			respond(log, w, http.StatusNotFound, ResponseError{Error: msgNoRecentTopTracks, RunID: report.RunID})
			return
		}
		respond(log, w, http.StatusOK, ResponseAudioFeatures{
			Status:     msgAudioFeaturesFetched,
			Records:    report.Records,
			Skipped:    len(report.Skipped),
			SkippedIds: report.Skipped,
			RunID:      report.RunID,
			Key:        report.Key,
		})
	}
}

func GetHandlerRunList(log logger.Logger, registry *stats.RunRegistry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseRunList{Status: statusOk, Runs: registry.List()})
	}
}

func GetHandlerRunStatus(log logger.Logger, registry *stats.RunRegistry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		ri, ok := registry.Load(id)
		if !ok { // if the run doesn't exist...
			log.Info("HTTP request status of run ", id, " that doesn't exist.")
			respond(log, w, http.StatusNotFound, ResponseRunStatus{Status: statusError, Message: fmt.Sprintf("run %v does not exist", id)})
			return
		}
		respond(log, w, http.StatusOK, ResponseRunStatus{Status: statusOk, Run: &ri})
	}
}

// httpStatusOf maps a run error to a response code and message.
func httpStatusOf(err error) (int, string) {
	var upstreamErr *spotify.UpstreamFetchError
	var queryErr *watermark.WarehouseQueryError
	var loadErr *loader.WarehouseLoadError
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return http.StatusConflict, err.Error()
	case errors.As(err, &upstreamErr), errors.As(err, &queryErr):
		return http.StatusBadGateway, err.Error()
	case errors.As(err, &loadErr):
		return http.StatusInternalServerError, fmt.Sprintf("%v: %v", msgLoadFailed, err)
	}
	return http.StatusInternalServerError, err.Error() // auth and storage failures
}

func respondWithError(log logger.Logger, w http.ResponseWriter, runID string, err error) {
	code, msg := httpStatusOf(err)
	if code == http.StatusConflict {
		log.Info(msg)
	} else {
		log.Error(msg)
	}
	respond(log, w, code, ResponseError{Error: msg, RunID: runID})
}

// respond will marshal i to a string and write it to w with the given status code.
func respond(log logger.Logger, w http.ResponseWriter, code int, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(code)
	if _, err = fmt.Fprint(w, string(j)); err != nil {
		log.Error("error writing response: ", err)
	}
}
