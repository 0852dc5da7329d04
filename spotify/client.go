// Package spotify extracts top tracks and audio features from the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/stats"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	endpointTopTracks     = "top-tracks"
	endpointAudioFeatures = "audio-features"
	maxBodyBytes          = 4 << 20
)

type Config struct {
	APIBaseURL           string `errorTxt:"api base url" mandatory:"yes"`
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	FeatureConcurrency   int
	RequestsPerSecond    float64      // zero disables client-side throttling
	HTTPClient           *http.Client // base client whose transport is wrapped with the bearer token
}

type Client struct {
	log          logger.Logger
	baseURL      string
	base         *http.Client
	timeout      time.Duration
	maxRetries   int
	retryInitial time.Duration
	concurrency  int
	limiter      *rate.Limiter
}

func NewClient(log logger.Logger, cfg Config) (*Client, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return nil, err
	}
	c := &Client{
		log:          log,
		baseURL:      cfg.APIBaseURL,
		base:         cfg.HTTPClient,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		retryInitial: cfg.RetryInitialInterval,
		concurrency:  cfg.FeatureConcurrency,
	}
	if c.base == nil {
		c.base = http.DefaultClient
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// bearerClient returns an http.Client that authorises every request with token.
func (c *Client) bearerClient(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	hc.Timeout = c.timeout
	return hc
}

// get issues a GET with the shared timeout and retry policy and returns the body of a 2xx response.
// Failures are returned as *UpstreamFetchError.
func (c *Client) get(ctx context.Context, hc *http.Client, endpoint string, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(&UpstreamFetchError{Endpoint: endpoint, Err: err})
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(&UpstreamFetchError{Endpoint: endpoint, Err: err})
		}
		resp, err := hc.Do(req)
		if err != nil {
			stats.ObserveUpstreamRequest(endpoint, "error")
			c.log.Debug(endpoint, " request failed: ", err)
			return &UpstreamFetchError{Endpoint: endpoint, Err: err}
		}
		defer resp.Body.Close()
		stats.ObserveUpstreamRequest(endpoint, fmt.Sprint(resp.StatusCode))
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return &UpstreamFetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			e := &UpstreamFetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(b)}
			if helper.IsTransientStatus(resp.StatusCode) {
				c.log.Debug(endpoint, " transient status ", resp.StatusCode, ", will retry")
				return e
			}
			return backoff.Permanent(e)
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, helper.NewBackOff(ctx, c.retryInitial, c.maxRetries)); err != nil {
		if _, ok := err.(*UpstreamFetchError); ok {
			return nil, err
		}
		return nil, &UpstreamFetchError{Endpoint: endpoint, Err: err}
	}
	return body, nil
}
