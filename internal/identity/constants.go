// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import "time"

// # Authentication Constraints

const (
	// CodeLength is the number of decimal digits in an emailed one-time code.
	CodeLength = 6

	// CodeTTL is the duration a one-time code remains valid.
	// Short-lived (10m) since codes are low-entropy.
	CodeTTL = 10 * time.Minute

	// MaxCodeAttempts is the number of verification attempts allowed per code.
	// The code is invalidated once the limit is reached.
	MaxCodeAttempts = 5

	// AccessTokenTTL is the duration a JWT access token remains valid.
	// We keep it short (15m) to minimize the impact of a leaked token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a refresh session remains valid.
	// Long-lived (30 days) to provide a good user experience.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// RefreshTokenLength is the byte length of the random secure token.
	RefreshTokenLength = 32

	// DefaultSubscriptionPlan is assigned to freshly created accounts.
	DefaultSubscriptionPlan = "trial"
)
