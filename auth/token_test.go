package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relloyd/trackpipe/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, url string) *Manager {
	m, err := NewManager(logger.NewLogger("trackpipe", "error", false), Config{
		ClientID:             "client",
		ClientSecret:         "secret",
		RefreshToken:         "refresh-1",
		TokenURL:             url,
		Timeout:              time.Second,
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func TestRefreshSendsRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`))
	}))
	defer srv.Close()
	m := newTestManager(t, srv.URL)
	tok, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-2", m.refreshToken, "rotated refresh token should be kept in memory")
}

func TestRefreshRejectedIsFatalWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid refresh token"}`))
	}))
	defer srv.Close()
	_, err := newTestManager(t, srv.URL).Refresh(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "expected *AuthError; got %T %v", err, err)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_grant")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()
	m := newTestManager(t, srv.URL)
	tok, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, "refresh-1", m.refreshToken)
}

func TestRefreshGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := newTestManager(t, srv.URL).Refresh(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusBadGateway, authErr.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRefreshMissingAccessTokenIsFatalWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()
	_, err := newTestManager(t, srv.URL).Refresh(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "expected *AuthError; got %T %v", err, err)
	assert.Zero(t, authErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRefreshNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connections are now refused
	_, err := newTestManager(t, url).Refresh(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, isTransient(authErr), "connection failures are transient; got %v", authErr.Err)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(logger.NewLogger("trackpipe", "error", false), Config{ClientID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token")
}
