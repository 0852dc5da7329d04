package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/pipeline"
	"github.com/relloyd/trackpipe/stats"
)

// Runner runs the pipelines on behalf of the HTTP handlers.
type Runner interface {
	RunTopTracks(ctx context.Context) (pipeline.TopTracksReport, error)
	RunAudioFeatures(ctx context.Context) (pipeline.AudioFeaturesReport, error)
}

type WebServerConfig struct {
	Addr     net.IP             `errorTxt:"address" mandatory:"no"`
	Port     int                `errorTxt:"port" mandatory:"yes"`
	Runner   Runner             `errorTxt:"pipeline runner" mandatory:"yes"`
	Registry *stats.RunRegistry `errorTxt:"run registry" mandatory:"yes"`
}

func RunWebServer(log logger.Logger, web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	// Check if we have valid input params.
	err := helper.ValidateStructIsPopulated(web)
	if err != nil {
		return err
	}
	// Start the web server.
	srv, chanStopServer := runServer(log, web)
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer)
}

// NewRouter returns the routes served by RunWebServer.
func NewRouter(log logger.Logger, web *WebServerConfig, chanStopServer chan string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/metrics").Handler(promhttp.Handler())
	r.Path("/runs").Methods(http.MethodGet).HandlerFunc(GetHandlerRunList(log, web.Registry))
	r.Path("/runs/{runId}").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStatus(log, web.Registry))
	r.Path("/run-top-tracks").Methods(http.MethodPost).HandlerFunc(GetHandlerRunTopTracks(log, web.Runner))
	r.Path("/run-audio-features").Methods(http.MethodPost).HandlerFunc(GetHandlerRunAudioFeatures(log, web.Runner))
	return r
}

// runServer starts a web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop the web server
func runServer(log logger.Logger, web *WebServerConfig) (*http.Server, chan string) {
	chanStopServer := make(chan string, 1)
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * constants.ServerWriteSeconds,
		ReadTimeout:  time.Second * constants.ServerReadSeconds,
		IdleTimeout:  time.Second * constants.ServerIdleSeconds,
		Handler:      NewRouter(log, web, chanStopServer), // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv, chanStopServer
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	// In-flight runs keep their connection until they finish or the deadline passes.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*constants.ServerShutdownSeconds)
	defer cancel()
	return srv.Shutdown(ctx)
}
