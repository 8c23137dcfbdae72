// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package sec

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired signals that an access token was well-formed and correctly
// signed but is past its expiry claim.
var ErrTokenExpired = errors.New("sec: token expired")

// containsExpiry reports whether a jwt parse error chain includes expiry.
func containsExpiry(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
