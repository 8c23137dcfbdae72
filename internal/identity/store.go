// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user records.
type UserRepository interface {

	/*
		FindByID returns the user with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the user with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user record.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		TouchLastLogin stamps the user's last successful login time.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - when: time.Time

		Returns:
		  - error: Persistence failures
	*/
	TouchLastLogin(context context.Context, userID string, when time.Time) error
}

// # Account Data Access

// AccountRepository defines the data access contract for business accounts.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		CreateWithOwner persists a new account and its owning user atomically.

		Description: Runs in a single transaction so a failed user insert can
		never leave an orphaned account behind.

		Parameters:
		  - context: context.Context
		  - account: *Account
		  - owner: *User

		Returns:
		  - error: Persistence failures
	*/
	CreateWithOwner(context context.Context, account *Account, owner *User) error
}

// # Session Data Access

// SessionRepository defines the data access contract for refresh-token sessions.
type SessionRepository interface {

	/*
		Create persists a new tracking session for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByTokenHash returns the live (unrevoked, unexpired) session
		matching the given token hash.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *Session: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*Session, error)

	/*
		Revoke marks a specific session as permanently invalidated.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, sessionID string) error

	/*
		DeleteExpired physically removes sessions whose ExpiresAt is in the past.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context) error
}

// # Volatile Data Access

// CodePurpose distinguishes the two one-time code flows. Login and signup
// codes are stored under separate keys so a login code can never complete
// a signup (and vice versa).
type CodePurpose string

const (
	PurposeLogin  CodePurpose = "login"
	PurposeSignup CodePurpose = "signup"
)

// CodeRepository defines the contract for storing volatile one-time codes.
type CodeRepository interface {

	/*
		SetCode stores a hashed one-time code for an email with a TTL.

		Description: Overwrites any previous code for the same purpose+email
		(re-issuing a code invalidates the old one) and resets the attempt
		counter.

		Parameters:
		  - context: context.Context
		  - purpose: CodePurpose
		  - email: string
		  - codeHash: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	SetCode(context context.Context, purpose CodePurpose, email, codeHash string, ttl time.Duration) error

	/*
		GetCode retrieves the stored code hash for an email.

		Description: Returns apperr.NotFound if no code is pending or the
		code has expired.

		Parameters:
		  - context: context.Context
		  - purpose: CodePurpose
		  - email: string

		Returns:
		  - string: Code hash
		  - error: apperr.NotFound or connectivity errors
	*/
	GetCode(context context.Context, purpose CodePurpose, email string) (string, error)

	/*
		DeleteCode removes a consumed or invalidated code.

		Parameters:
		  - context: context.Context
		  - purpose: CodePurpose
		  - email: string

		Returns:
		  - error: Deletion failures
	*/
	DeleteCode(context context.Context, purpose CodePurpose, email string) error

	/*
		IncrementAttempts bumps and returns the failed-attempt counter for a
		pending code.

		Parameters:
		  - context: context.Context
		  - purpose: CodePurpose
		  - email: string
		  - ttl: time.Duration

		Returns:
		  - int64: Attempt count after the increment
		  - error: Persistence failures
	*/
	IncrementAttempts(context context.Context, purpose CodePurpose, email string, ttl time.Duration) (int64, error)
}
