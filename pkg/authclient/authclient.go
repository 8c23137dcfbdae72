// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package authclient is the client-side gateway for the Fieldvine
authentication API.

It is the only client package that talks to the network for auth: it wraps
the five auth operations (request login code, request signup code, verify
login, verify signup, refresh) plus local logout, and owns all writes to the
durable credential record in [credstore.Store].

# Storage contract

  - Verify operations persist the credential pair and the serialized
    user/account snapshots on success, and touch nothing on failure.
  - Refresh overwrites only the access token on success, and touches
    nothing on failure — session cleanup is the caller's decision.
  - Logout clears the four session keys without a network call.
*/
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldvine/fieldvine/pkg/credstore"
)

// # Wire Types

// Identity is the authenticated user as the server serializes it.
type Identity struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Account is the business tenant the identity belongs to.
type Account struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BusinessType     string    `json:"business_type"`
	SubscriptionPlan string    `json:"subscription_plan"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Session is the result of a successful verification: the credential pair
// and the identity snapshot, already persisted to storage.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *Identity
	Account      *Account
}

// SignupFields carries the profile data collected during signup.
type SignupFields struct {
	FirstName    string
	LastName     string
	AccountName  string
	BusinessType string
}

// envelope is the flat response shape shared by every auth endpoint.
type envelope struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	Code         string          `json:"code"`
	User         json.RawMessage `json:"user"`
	Account      json.RawMessage `json:"account"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
}

// # Gateway

// Gateway translates the logical auth operations into HTTP calls and
// manages the credential record.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	store      credstore.Store
}

// Option customizes a [Gateway].
type Option func(*Gateway)

// WithHTTPClient replaces the underlying HTTP client. The default client
// carries no timeout; callers impose deadlines through the context.
func WithHTTPClient(client *http.Client) Option {
	return func(gateway *Gateway) {
		gateway.httpClient = client
	}
}

// New constructs a [Gateway] against the given base URL (no trailing slash).
func New(baseURL string, store credstore.Store, options ...Option) *Gateway {
	gateway := &Gateway{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		store:      store,
	}
	for _, option := range options {
		option(gateway)
	}
	return gateway
}

// # Code Requests

// SendLoginCode asks the server to email a one-time login code.
// No storage side effect.
func (gateway *Gateway) SendLoginCode(context context.Context, email string) error {
	_, err := gateway.post(context, "/auth/login", map[string]string{"email": email})
	return err
}

// SendSignupCode asks the server to email a one-time signup code.
// No storage side effect.
func (gateway *Gateway) SendSignupCode(context context.Context, email string) error {
	_, err := gateway.post(context, "/auth/signup", map[string]string{"email": email})
	return err
}

// # Verification

/*
VerifyLoginCode exchanges a one-time code for a session.

Description: On success the credential pair and the serialized user/account
snapshots are persisted before returning. On failure storage is untouched,
so the caller may retry with a fresh code.

Parameters:
  - context: context.Context
  - email: string
  - code: string

Returns:
  - *Session: The established session
  - error: *NetworkError or *ServerRejectedError
*/
func (gateway *Gateway) VerifyLoginCode(context context.Context, email, code string) (*Session, error) {
	reply, err := gateway.post(context, "/auth/verify-login", map[string]string{
		"email":    email,
		"otp_code": code,
	})
	if err != nil {
		return nil, err
	}
	return gateway.persistSession(reply)
}

/*
CompleteSignup verifies a signup code and establishes the first session.

Description: Same storage contract as VerifyLoginCode. Whether the session
counts as a new user is decided by the caller, not here.

Parameters:
  - context: context.Context
  - email: string
  - code: string
  - fields: SignupFields

Returns:
  - *Session: The established session
  - error: *NetworkError or *ServerRejectedError
*/
func (gateway *Gateway) CompleteSignup(context context.Context, email, code string, fields SignupFields) (*Session, error) {
	reply, err := gateway.post(context, "/auth/verify-signup", map[string]string{
		"email":         email,
		"otp_code":      code,
		"first_name":    fields.FirstName,
		"last_name":     fields.LastName,
		"account_name":  fields.AccountName,
		"business_type": fields.BusinessType,
	})
	if err != nil {
		return nil, err
	}
	return gateway.persistSession(reply)
}

// # Token Lifecycle

/*
RefreshAccessToken exchanges the stored refresh token for a new access token.

Description: On success only the access token in storage is overwritten.
On failure storage is untouched — whether to tear the session down is the
caller's decision, not the gateway's.

Returns:
  - string: The new access token
  - error: ErrNoRefreshToken, *NetworkError, or *ServerRejectedError
*/
func (gateway *Gateway) RefreshAccessToken(context context.Context) (string, error) {
	refreshToken, err := gateway.store.Get(credstore.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	reply, err := gateway.post(context, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", err
	}

	if reply.AccessToken == "" {
		return "", &NetworkError{Err: fmt.Errorf("authclient: refresh reply missing access token")}
	}

	if err := gateway.store.Set(credstore.KeyAccessToken, reply.AccessToken); err != nil {
		return "", fmt.Errorf("authclient: persisting access token: %w", err)
	}
	return reply.AccessToken, nil
}

// Logout clears the four persisted session keys. No network call.
func (gateway *Gateway) Logout() error {
	return gateway.store.Clear()
}

// Revoke asks the server to revoke the stored refresh session, then clears
// local storage. Revocation is best effort; local cleanup always happens.
func (gateway *Gateway) Revoke(context context.Context) error {
	if refreshToken, err := gateway.store.Get(credstore.KeyRefreshToken); err == nil && refreshToken != "" {
		_, _ = gateway.post(context, "/auth/logout", map[string]string{
			"refresh_token": refreshToken,
		})
	}
	return gateway.store.Clear()
}

// # Internals

// post executes one JSON round trip and normalizes every failure into the
// gateway taxonomy.
func (gateway *Gateway) post(context context.Context, path string, body map[string]string) (*envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost, gateway.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := gateway.httpClient.Do(request)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer response.Body.Close()

	// A payload that cannot be decoded is treated exactly like a
	// transport failure: the server could not be understood.
	var reply envelope
	if err := json.NewDecoder(response.Body).Decode(&reply); err != nil {
		return nil, &NetworkError{Err: err}
	}

	if !reply.Success {
		return nil, &ServerRejectedError{
			Message: reply.Message,
			Code:    reply.Code,
			Status:  response.StatusCode,
		}
	}
	return &reply, nil
}

// persistSession validates a verification reply and writes the four session
// keys. Nothing is written unless the reply carries a complete session.
func (gateway *Gateway) persistSession(reply *envelope) (*Session, error) {
	if reply.AccessToken == "" || reply.RefreshToken == "" || len(reply.User) == 0 || len(reply.Account) == 0 {
		return nil, &NetworkError{Err: fmt.Errorf("authclient: verification reply missing session fields")}
	}

	var user Identity
	if err := json.Unmarshal(reply.User, &user); err != nil {
		return nil, &NetworkError{Err: err}
	}
	var account Account
	if err := json.Unmarshal(reply.Account, &account); err != nil {
		return nil, &NetworkError{Err: err}
	}

	writes := []struct {
		key   string
		value string
	}{
		{credstore.KeyAccessToken, reply.AccessToken},
		{credstore.KeyRefreshToken, reply.RefreshToken},
		{credstore.KeyUser, string(reply.User)},
		{credstore.KeyAccount, string(reply.Account)},
	}
	for _, write := range writes {
		if err := gateway.store.Set(write.key, write.value); err != nil {
			return nil, fmt.Errorf("authclient: persisting %s: %w", write.key, err)
		}
	}

	return &Session{
		AccessToken:  reply.AccessToken,
		RefreshToken: reply.RefreshToken,
		ExpiresIn:    reply.ExpiresIn,
		User:         &user,
		Account:      &account,
	}, nil
}
