// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvine/fieldvine/pkg/credstore"
)

const (
	expiredToken = "expired.access.token"
	freshToken   = "fresh.access.token"
)

// countingRefresher is a TokenRefresher with an atomic invocation counter.
// Its release channel, when set, blocks completion so tests can hold the
// refresh in flight.
type countingRefresher struct {
	store   credstore.Store
	token   string
	err     error
	release chan struct{}

	count atomic.Int32
}

func (refresher *countingRefresher) RefreshAccessToken(_ context.Context) (string, error) {
	refresher.count.Add(1)
	if refresher.release != nil {
		<-refresher.release
	}
	if refresher.err != nil {
		return "", refresher.err
	}
	_ = refresher.store.Set(credstore.KeyAccessToken, refresher.token)
	return refresher.token, nil
}

// expiryAwareServer returns 401 TOKEN_EXPIRED unless the fresh token is
// presented. It counts expired-token rejections.
func expiryAwareServer(t *testing.T, rejected *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer "+freshToken {
			rejected.Add(1)
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]any{
				"success": false, "message": "Access token has expired", "code": "TOKEN_EXPIRED",
			})
			return
		}
		_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "ok"})
	}))
	t.Cleanup(server.Close)
	return server
}

// authenticatedStore seeds a store with a full session record.
func authenticatedStore(t *testing.T, accessToken string) *credstore.MemoryStore {
	t.Helper()

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(credstore.KeyAccessToken, accessToken))
	require.NoError(t, store.Set(credstore.KeyRefreshToken, "refresh-token-1"))
	require.NoError(t, store.Set(credstore.KeyUser, `{"id":"usr-1"}`))
	require.NoError(t, store.Set(credstore.KeyAccount, `{"id":"acc-1"}`))
	return store
}

func TestSingleFlightRefresh(t *testing.T) {
	const concurrent = 8

	var rejected atomic.Int32
	server := expiryAwareServer(t, &rejected)

	store := authenticatedStore(t, expiredToken)
	refresher := &countingRefresher{store: store, token: freshToken, release: make(chan struct{})}
	client := New(store, refresher)

	// Hold the refresh open until every request has seen its 401.
	go func() {
		for rejected.Load() < concurrent {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		close(refresher.release)
	}()

	var wg sync.WaitGroup
	statuses := make([]int, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			request, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/jobs", nil)
			require.NoError(t, err)

			response, err := client.Do(request)
			require.NoError(t, err)
			defer response.Body.Close()
			statuses[slot] = response.StatusCode
		}(i)
	}
	wg.Wait()

	// One refresh for N concurrent expiries; every request retried to success.
	assert.Equal(t, int32(1), refresher.count.Load())
	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestRetriedRequestThat401s(t *testing.T) {
	// The server rejects even the fresh token: the retry's 401 must surface
	// without a second refresh attempt.
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"success": false, "message": "Access token has expired", "code": "TOKEN_EXPIRED",
		})
	}))
	t.Cleanup(server.Close)

	store := authenticatedStore(t, expiredToken)
	refresher := &countingRefresher{store: store, token: freshToken}
	client := New(store, refresher)

	request, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Equal(t, int32(1), refresher.count.Load())
}

func TestMalformedStoredToken(t *testing.T) {
	// A stored token without the signed three-segment shape is corrupted
	// state: everything is wiped and the request goes out unauthenticated.
	var sawAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		sawAuthorization = request.Header.Get("Authorization")
		_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "ok"})
	}))
	t.Cleanup(server.Close)

	store := authenticatedStore(t, "abc")
	client := New(store, &countingRefresher{store: store})

	request, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	assert.Empty(t, sawAuthorization)
	for _, key := range credstore.SessionKeys {
		_, err := store.Get(key)
		assert.ErrorIs(t, err, credstore.ErrNotFound, key)
	}
}

func TestExpiryWithoutRefreshToken(t *testing.T) {
	var rejected atomic.Int32
	server := expiryAwareServer(t, &rejected)

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(credstore.KeyAccessToken, expiredToken))
	require.NoError(t, store.Set(credstore.KeyUser, `{"id":"usr-1"}`))
	refresher := &countingRefresher{store: store}
	client := New(store, refresher)

	request, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	// No refresh call, full cleanup, and the original 401 comes back.
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Zero(t, refresher.count.Load())
	for _, key := range credstore.SessionKeys {
		_, err := store.Get(key)
		assert.ErrorIs(t, err, credstore.ErrNotFound, key)
	}
}

func TestFailedRefresh(t *testing.T) {
	var rejected atomic.Int32
	server := expiryAwareServer(t, &rejected)

	store := authenticatedStore(t, expiredToken)
	refresher := &countingRefresher{store: store, err: errors.New("refresh token revoked")}
	client := New(store, refresher)

	request, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	// The original 401 body is intact for the caller.
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "TOKEN_EXPIRED")

	for _, key := range credstore.SessionKeys {
		_, err := store.Get(key)
		assert.ErrorIs(t, err, credstore.ErrNotFound, key)
	}
}

func TestNonExpiry401PassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"success": false, "message": "Authentication required", "code": "UNAUTHORIZED",
		})
	}))
	t.Cleanup(server.Close)

	store := authenticatedStore(t, expiredToken)
	refresher := &countingRefresher{store: store, token: freshToken}
	client := New(store, refresher)

	request, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Zero(t, refresher.count.Load())
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		raw, _ := io.ReadAll(request.Body)
		bodies = append(bodies, string(raw))
		if request.Header.Get("Authorization") != "Bearer "+freshToken {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]any{
				"success": false, "message": "Access token has expired", "code": "TOKEN_EXPIRED",
			})
			return
		}
		_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "ok"})
	}))
	t.Cleanup(server.Close)

	store := authenticatedStore(t, expiredToken)
	client := New(store, &countingRefresher{store: store, token: freshToken})

	request, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"status":"approved"}`))
	require.NoError(t, err)

	response, err := client.Do(request)

	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, `{"status":"approved"}`, bodies[1])
}
