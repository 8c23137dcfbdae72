// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package session holds the client-side session state machine.

A [Manager] owns the in-memory session state (Anonymous → OtpPending →
Authenticated) and drives the auth gateway. It is an explicit,
dependency-injected object: tests and embedders construct isolated
instances instead of sharing ambient global state.

# Contract

Every operation returns a [Result] and never a raw error — network and
server failures are normalized into `{Success:false, Message}` with the
server's message passed through verbatim where one exists.

Durable state lives in the credential store and is written by the gateway;
the manager only mirrors it into memory.
*/
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fieldvine/fieldvine/pkg/authclient"
	"github.com/fieldvine/fieldvine/pkg/credstore"
)

// # State Machine

// State is the session lifecycle phase.
type State string

const (
	// StateAnonymous is the logged-out state.
	StateAnonymous State = "anonymous"

	// StateOtpPending means a code was emailed and awaits verification.
	StateOtpPending State = "otp_pending"

	// StateAuthenticated means a live credential pair is in storage.
	StateAuthenticated State = "authenticated"
)

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	State           State
	IsAuthenticated bool
	IsLoading       bool

	// IsNewUser marks a session established by signup completion, consumed
	// once by onboarding logic downstream.
	IsNewUser bool

	OtpSent  bool
	OtpEmail string

	User    *authclient.Identity
	Account *authclient.Account
}

// Result is the normalized outcome of a session operation.
type Result struct {
	Success bool
	Message string
}

// # Dependencies

// Gateway is the slice of the auth gateway the manager drives.
type Gateway interface {
	SendLoginCode(context context.Context, email string) error
	SendSignupCode(context context.Context, email string) error
	VerifyLoginCode(context context.Context, email, code string) (*authclient.Session, error)
	CompleteSignup(context context.Context, email, code string, fields authclient.SignupFields) (*authclient.Session, error)
	Logout() error
}

// # Manager

// Manager is the session state machine.
//
// # Concurrency
//
// State transitions are serialized by an internal mutex. Overlapping code
// requests are allowed (a pending code may be re-issued); the mutex is not
// held across network calls, so snapshots stay readable while a call is
// in flight.
type Manager struct {
	gateway Gateway
	store   credstore.Store

	mu       sync.Mutex
	snapshot Snapshot
}

// NewManager constructs a [Manager] in the Anonymous state. Call Hydrate
// to restore a persisted session.
func NewManager(gateway Gateway, store credstore.Store) *Manager {
	return &Manager{
		gateway:  gateway,
		store:    store,
		snapshot: Snapshot{State: StateAnonymous},
	}
}

// Snapshot returns a copy of the current session state.
func (manager *Manager) Snapshot() Snapshot {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.snapshot
}

/*
Hydrate restores the session from persisted storage.

Description: Never touches the network, and is idempotent: calling it twice
against unchanged storage yields identical snapshots. If any of the four
session keys is absent or unreadable the session is Anonymous.

Returns:
  - Snapshot: The state after hydration
*/
func (manager *Manager) Hydrate() Snapshot {
	user, account, ok := manager.readPersisted()

	manager.mu.Lock()
	defer manager.mu.Unlock()

	if !ok {
		manager.snapshot = Snapshot{State: StateAnonymous}
		return manager.snapshot
	}

	manager.snapshot = Snapshot{
		State:           StateAuthenticated,
		IsAuthenticated: true,
		User:            user,
		Account:         account,
	}
	return manager.snapshot
}

// readPersisted loads and parses the four session keys. Absence of any
// required key means logged out.
func (manager *Manager) readPersisted() (*authclient.Identity, *authclient.Account, bool) {
	accessToken, err := manager.store.Get(credstore.KeyAccessToken)
	if err != nil || accessToken == "" {
		return nil, nil, false
	}
	if _, err := manager.store.Get(credstore.KeyRefreshToken); err != nil {
		return nil, nil, false
	}

	userJSON, err := manager.store.Get(credstore.KeyUser)
	if err != nil {
		return nil, nil, false
	}
	accountJSON, err := manager.store.Get(credstore.KeyAccount)
	if err != nil {
		return nil, nil, false
	}

	var user authclient.Identity
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, nil, false
	}
	var account authclient.Account
	if err := json.Unmarshal([]byte(accountJSON), &account); err != nil {
		return nil, nil, false
	}
	return &user, &account, true
}

// # Code Requests

// SendLoginCode requests a one-time login code. On success the session
// moves to OtpPending with the email recorded for the verify step.
func (manager *Manager) SendLoginCode(context context.Context, email string) Result {
	return manager.sendCode(context, email, manager.gateway.SendLoginCode)
}

// SendSignupCode requests a one-time signup code. Same transitions as
// SendLoginCode.
func (manager *Manager) SendSignupCode(context context.Context, email string) Result {
	return manager.sendCode(context, email, manager.gateway.SendSignupCode)
}

func (manager *Manager) sendCode(context context.Context, email string, send func(context.Context, string) error) Result {
	manager.beginLoading()

	if err := send(context, email); err != nil {
		manager.failFlow()
		return Result{Success: false, Message: authclient.UserMessage(err)}
	}

	manager.mu.Lock()
	manager.snapshot.IsLoading = false
	manager.snapshot.OtpSent = true
	manager.snapshot.OtpEmail = email
	if manager.snapshot.State == StateAnonymous {
		manager.snapshot.State = StateOtpPending
	}
	manager.mu.Unlock()

	return Result{Success: true, Message: "Verification code sent"}
}

// # Verification

// VerifyLoginCode exchanges the emailed code for an authenticated session.
// A session established this way is never a new user.
func (manager *Manager) VerifyLoginCode(context context.Context, email, code string) Result {
	manager.beginLoading()

	session, err := manager.gateway.VerifyLoginCode(context, email, code)
	if err != nil {
		manager.failFlow()
		return Result{Success: false, Message: authclient.UserMessage(err)}
	}

	manager.completeFlow(session, false)
	return Result{Success: true, Message: "Login successful"}
}

// CompleteSignup verifies the signup code and establishes the first
// session, tagged as a new user for downstream onboarding.
func (manager *Manager) CompleteSignup(context context.Context, email, code string, fields authclient.SignupFields) Result {
	manager.beginLoading()

	session, err := manager.gateway.CompleteSignup(context, email, code, fields)
	if err != nil {
		manager.failFlow()
		return Result{Success: false, Message: authclient.UserMessage(err)}
	}

	manager.completeFlow(session, true)
	return Result{Success: true, Message: "Account created"}
}

// # Logout

// Logout clears durable storage and resets the session to Anonymous.
func (manager *Manager) Logout() Result {
	if err := manager.gateway.Logout(); err != nil {
		return Result{Success: false, Message: authclient.UserMessage(err)}
	}

	manager.mu.Lock()
	manager.snapshot = Snapshot{State: StateAnonymous}
	manager.mu.Unlock()

	return Result{Success: true, Message: "Logged out"}
}

// # Transitions

// beginLoading marks an operation in flight and clears any stale code flag.
func (manager *Manager) beginLoading() {
	manager.mu.Lock()
	manager.snapshot.IsLoading = true
	manager.snapshot.OtpSent = false
	manager.mu.Unlock()
}

// failFlow resets every identity and code field and returns to Anonymous.
func (manager *Manager) failFlow() {
	manager.mu.Lock()
	manager.snapshot = Snapshot{State: StateAnonymous}
	manager.mu.Unlock()
}

// completeFlow applies a successful verification to the in-memory state.
// Durable storage was already written by the gateway.
func (manager *Manager) completeFlow(session *authclient.Session, isNewUser bool) {
	manager.mu.Lock()
	manager.snapshot = Snapshot{
		State:           StateAuthenticated,
		IsAuthenticated: true,
		IsNewUser:       isNewUser,
		User:            session.User,
		Account:         session.Account,
	}
	manager.mu.Unlock()
}
