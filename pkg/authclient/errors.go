// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package authclient

import "errors"

// # Failure Taxonomy

// NetworkErrorMessage is the synthesized user-facing message for transport
// and parse failures, where no server detail is available.
const NetworkErrorMessage = "Network error occurred"

// NetworkError covers transport failures and malformed server payloads.
// Both are indistinguishable to the user: the server could not be understood.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return NetworkErrorMessage
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerRejectedError is a well-formed failure envelope from the server.
// Its message is shown to the user verbatim.
type ServerRejectedError struct {
	Message string
	Code    string
	Status  int
}

func (e *ServerRejectedError) Error() string {
	return e.Message
}

// ErrNoRefreshToken is returned by RefreshAccessToken when the store holds
// no refresh token. The session cannot be silently renewed.
var ErrNoRefreshToken = errors.New("authclient: no refresh token in storage")

// UserMessage maps any gateway error to the string shown in the UI:
// server messages pass through verbatim, everything else collapses to the
// generic network message.
func UserMessage(err error) string {
	var rejected *ServerRejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	return NetworkErrorMessage
}
