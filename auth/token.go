// Package auth exchanges the long-lived refresh secret for a short-lived access token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/relloyd/trackpipe/helper"
	"github.com/relloyd/trackpipe/logger"
	"golang.org/x/oauth2"
)

// AuthError is returned when the refresh grant is rejected or cannot be completed.
// It is fatal for the run.
type AuthError struct {
	StatusCode int // zero when no response was received
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh failed with status %v: %v", e.StatusCode, helper.Truncate(strings.TrimSpace(e.Body), 512))
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

type Config struct {
	ClientID             string `errorTxt:"client id" mandatory:"yes"`
	ClientSecret         string `errorTxt:"client secret" mandatory:"yes"`
	RefreshToken         string `errorTxt:"refresh token" mandatory:"yes"`
	TokenURL             string `errorTxt:"token url" mandatory:"yes"`
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	HTTPClient           *http.Client // optional; a client with Timeout is created when nil
}

// Manager performs the refresh grant. It keeps no state beyond the refresh secret, which the
// authorisation server may rotate.
type Manager struct {
	log          logger.Logger
	conf         *oauth2.Config
	httpClient   *http.Client
	maxRetries   int
	retryInitial time.Duration
	mu           sync.Mutex
	refreshToken string
}

func NewManager(log logger.Logger, cfg Config) (*Manager, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Manager{
		log: log,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams, // client_id and client_secret travel in the form body
			},
		},
		httpClient:   client,
		maxRetries:   cfg.MaxRetries,
		retryInitial: cfg.RetryInitialInterval,
		refreshToken: cfg.RefreshToken,
	}, nil
}

// Refresh issues one refresh grant and returns the new access token.
// Rejections (4xx other than 429) fail immediately; transient failures are retried with backoff.
// Every failure is returned as *AuthError.
func (m *Manager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	var tok *oauth2.Token
	attempt := 0
	op := func() error {
		attempt++
		var err error
		// An expired token with only a refresh token set forces the refresh grant.
		src := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken})
		tok, err = src.Token()
		if err == nil {
			return nil
		}
		authErr := toAuthError(err)
		if !isTransient(authErr) {
			return backoff.Permanent(authErr)
		}
		m.log.Warn("token refresh attempt ", attempt, " failed: ", authErr)
		return authErr
	}
	if err := backoff.Retry(op, helper.NewBackOff(ctx, m.retryInitial, m.maxRetries)); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, &AuthError{Err: err}
	}
	if tok.RefreshToken != "" && tok.RefreshToken != m.refreshToken { // if the server rotated the secret...
		m.log.Info("refresh token was rotated by the authorisation server")
		m.refreshToken = tok.RefreshToken
	}
	m.log.Debug("access token refreshed, expires ", tok.Expiry.Format(time.RFC3339))
	return tok, nil
}

// isTransient reports whether a failed refresh is worth retrying: a network failure or a
// transient HTTP status. Malformed 200 responses are not retried.
func isTransient(e *AuthError) bool {
	if e.StatusCode != 0 {
		return helper.IsTransientStatus(e.StatusCode)
	}
	var ue *url.Error
	var ne net.Error
	return errors.As(e.Err, &ue) || errors.As(e.Err, &ne)
}

func toAuthError(err error) *AuthError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &AuthError{StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
	}
	return &AuthError{Err: err}
}
