// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package credstore provides durable client-side storage for the session
credential record.

The record is exactly four keys: the access token, the refresh token, and
the serialized user and account snapshots. Absence of any key means the
client is logged out. Two implementations are provided: an in-memory store
for tests and short-lived processes, and a file-backed store for CLI and
desktop clients.
*/
package credstore

import "errors"

// # Storage Keys

// The four persisted session keys. These names are a wire-adjacent
// contract: they mirror the JSON field names of the auth responses.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyAccount      = "account"
)

// SessionKeys lists every key owned by the session record, in the order
// they are written after a successful verification.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyAccount}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("credstore: key not found")

// # Contract

// Store is the durable credential record.
//
// # Concurrency
//
// Implementations must be safe for concurrent use: the request wrapper
// reads tokens from arbitrary goroutines while a refresh may be writing.
type Store interface {
	// Get returns the value for key, or [ErrNotFound] if absent.
	Get(key string) (string, error)

	// Set writes the value for key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Clear removes every session key.
	Clear() error
}
