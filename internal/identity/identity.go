// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package identity implements user identity and session management for the
Fieldvine platform.

It defines the core domain entities (User, Account, Session) and the
passwordless email-code authentication lifecycle: code issuance, code
verification, token minting, and refresh.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies and encapsulate all business rules related to
identity and tenancy.
*/
package identity

import (
	"time"

	"github.com/fieldvine/fieldvine/internal/platform/sec"
)

// # Domain Entities

// User represents a member of a Fieldvine business account.
type User struct {
	ID            string       `json:"id"`
	AccountID     string       `json:"account_id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Role          sec.UserRole `json:"role"`
	Status        string       `json:"status"`
	EmailVerified bool         `json:"email_verified"`
	LastLogin     *time.Time   `json:"last_login,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Account represents a business tenant. One account owns many users.
type Account struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BusinessType     string    `json:"business_type"`
	SubscriptionPlan string    `json:"subscription_plan"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Session represents an active refresh-token session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // Hashed value of the refresh token. Omitted for security.
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthSession is the transport-ready result of a successful verification
// or login: the credential pair plus the identity snapshot.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // Access token lifetime in seconds.
	User         *User
	Account      *Account
}

// # Lifecycle Statuses

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail        = "email"
	FieldOTPCode      = "otp_code"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldAccountName  = "account_name"
	FieldBusinessType = "business_type"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldAccount      = "account"
)
