// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package apiclient is the HTTP request executor used by every non-auth API
call from Fieldvine clients.

It attaches the stored bearer token to outgoing requests, detects
access-token expiry from 401 responses, refreshes the token at most once
per expiry window, and replays the failed request exactly once.

# Single-flight guarantee

N simultaneous requests that all fail with an expired token trigger exactly
one refresh call; all N are retried with the same new access token. The
coalescing is [golang.org/x/sync/singleflight], which shares only in-flight
calls, so a later expiry starts a fresh refresh.
*/
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/fieldvine/fieldvine/pkg/credstore"
)

// refreshKey is the singleflight key: there is only one token to refresh.
const refreshKey = "access-token-refresh"

// maxErrorBody bounds how much of a 401 body is read for classification.
const maxErrorBody = 64 << 10

// TokenRefresher mints a new access token. Implemented by the auth gateway.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context) (string, error)
}

// # Client

// Client executes authenticated requests with transparent token refresh.
type Client struct {
	httpClient *http.Client
	store      credstore.Store
	refresher  TokenRefresher

	flight singleflight.Group
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The default client
// carries no timeout; callers impose deadlines through the request context.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// New constructs a [Client] over the given credential store and refresher.
func New(store credstore.Store, refresher TokenRefresher, options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		store:      store,
		refresher:  refresher,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

/*
Do executes the request with bearer attachment and at most one
refresh-and-retry cycle.

Description: The returned response may be any status — including the
original 401 when the session cannot be renewed. Only genuine transport
failures return an error.

Parameters:
  - request: *http.Request (Its context governs the whole cycle, refresh included)

Returns:
  - *http.Response: The final response
  - error: Transport failures only
*/
func (client *Client) Do(request *http.Request) (*http.Response, error) {
	// The body must be replayable for the post-refresh retry.
	if err := bufferBody(request); err != nil {
		return nil, err
	}

	client.attachToken(request)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	result := client.classify(response)
	switch result.kind {
	case outcomeResponse:
		return result.response, nil

	case outcomeFailure:
		// No refresh token: the session is over. Local state is already
		// wiped; the original 401 goes back to the caller.
		return result.response, nil

	case outcomeRetry:
		return client.refreshAndRetry(request, result.response)
	}

	return result.response, nil
}

// # Outcome Classification

// outcomeKind is the explicit result of inspecting a response.
type outcomeKind int

const (
	// outcomeResponse: final response, hand it to the caller as-is.
	outcomeResponse outcomeKind = iota

	// outcomeRetry: access token expired and a refresh token exists.
	outcomeRetry

	// outcomeFailure: access token expired but the session cannot be
	// renewed; storage has been cleaned up.
	outcomeFailure
)

type outcome struct {
	kind     outcomeKind
	response *http.Response
}

// classify decides what a response means for the session. Reading the body
// of a 401 is unavoidable; it is restored before the response is returned.
func (client *Client) classify(response *http.Response) outcome {
	if response.StatusCode != http.StatusUnauthorized {
		return outcome{kind: outcomeResponse, response: response}
	}

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	response.Body.Close()
	response.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return outcome{kind: outcomeResponse, response: response}
	}

	if !indicatesExpiry(body) {
		return outcome{kind: outcomeResponse, response: response}
	}

	refreshToken, err := client.store.Get(credstore.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		_ = client.store.Clear()
		return outcome{kind: outcomeFailure, response: response}
	}

	return outcome{kind: outcomeRetry, response: response}
}

// indicatesExpiry reports whether a 401 body names an expired access token,
// keyed on the machine code with the message as fallback.
func indicatesExpiry(body []byte) bool {
	var envelope struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	if envelope.Code == "TOKEN_EXPIRED" {
		return true
	}
	return strings.Contains(strings.ToLower(envelope.Message), "expired")
}

// # Refresh & Retry

// refreshAndRetry performs the shared refresh and replays the request once.
func (client *Client) refreshAndRetry(request *http.Request, original *http.Response) (*http.Response, error) {
	token, err, _ := client.flight.Do(refreshKey, func() (any, error) {
		return client.refresher.RefreshAccessToken(request.Context())
	})
	if err != nil {
		// A failed refresh is fatal to the session: same cleanup as
		// logout, and the original 401 propagates.
		_ = client.store.Clear()
		return original, nil
	}

	original.Body.Close()

	retry, err := cloneRequest(request)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+token.(string))

	// Exactly one replay. A 401 here surfaces to the caller unchanged;
	// it must not trigger another refresh.
	return client.httpClient.Do(retry)
}

// # Request Plumbing

// attachToken sets the bearer header if the stored token looks like a
// signed token (three non-empty dot-separated segments). A malformed token
// is corrupted state: all four session keys are wiped and the request goes
// out unauthenticated.
func (client *Client) attachToken(request *http.Request) {
	token, err := client.store.Get(credstore.KeyAccessToken)
	if err != nil || token == "" {
		return
	}

	if !wellFormedToken(token) {
		_ = client.store.Clear()
		return
	}

	request.Header.Set("Authorization", "Bearer "+token)
}

// wellFormedToken checks the three-segment structure of a signed token.
func wellFormedToken(token string) bool {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return false
	}
	for _, segment := range segments {
		if segment == "" {
			return false
		}
	}
	return true
}

// bufferBody makes the request body replayable.
func bufferBody(request *http.Request) error {
	if request.Body == nil || request.GetBody != nil {
		return nil
	}

	raw, err := io.ReadAll(request.Body)
	request.Body.Close()
	if err != nil {
		return err
	}

	request.Body = io.NopCloser(bytes.NewReader(raw))
	request.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return nil
}

// cloneRequest rebuilds the request for the retry, rewinding the body.
func cloneRequest(request *http.Request) (*http.Request, error) {
	retry := request.Clone(request.Context())
	if request.GetBody != nil {
		body, err := request.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}
