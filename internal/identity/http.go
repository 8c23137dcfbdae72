// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/fieldvine/fieldvine/internal/platform/request"
	"github.com/fieldvine/fieldvine/internal/platform/respond"
	"github.com/fieldvine/fieldvine/internal/platform/validate"
)

// # HTTP Transport

// Handler exposes the authentication lifecycle over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the authentication endpoints on the given router.
func (handler *Handler) Routes(router chi.Router) {
	router.Post("/login", handler.RequestLoginCode)
	router.Post("/signup", handler.RequestSignupCode)
	router.Post("/verify-login", handler.VerifyLoginCode)
	router.Post("/verify-signup", handler.VerifySignupCode)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)
}

// # Request Payloads

type requestCodePayload struct {
	Email string `json:"email"`
}

type verifyLoginPayload struct {
	Email   string `json:"email"`
	OTPCode string `json:"otp_code"`
}

type verifySignupPayload struct {
	Email        string `json:"email"`
	OTPCode      string `json:"otp_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AccountName  string `json:"account_name"`
	BusinessType string `json:"business_type"`
}

type refreshTokenPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// # Handlers

/*
RequestLoginCode handles POST /auth/login.

Description: Sends a one-time login code to a registered email address.
*/
func (handler *Handler) RequestLoginCode(writer http.ResponseWriter, request *http.Request) {
	var payload requestCodePayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RequestLoginCode(request.Context(), payload.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Verification code sent to your email")
}

/*
RequestSignupCode handles POST /auth/signup.

Description: Sends a one-time signup code to a new email address.
*/
func (handler *Handler) RequestSignupCode(writer http.ResponseWriter, request *http.Request) {
	var payload requestCodePayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RequestSignupCode(request.Context(), payload.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Verification code sent to your email")
}

/*
VerifyLoginCode handles POST /auth/verify-login.

Description: Exchanges a valid code for the credential pair and the identity
snapshot. The response carries the full session payload at the top level.
*/
func (handler *Handler) VerifyLoginCode(writer http.ResponseWriter, request *http.Request) {
	var payload verifyLoginPayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Required(FieldOTPCode, payload.OTPCode).
		Digits(FieldOTPCode, payload.OTPCode, CodeLength).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.VerifyLoginCode(request.Context(), VerifyLoginInput{
		Email:     payload.Email,
		Code:      payload.OTPCode,
		UserAgent: request.UserAgent(),
		IPAddress: request.RemoteAddr,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWith(writer, "Login successful", sessionExtra(session))
}

/*
VerifySignupCode handles POST /auth/verify-signup.

Description: Completes the signup: verifies the code, provisions the account
and its owner, and returns the first session.
*/
func (handler *Handler) VerifySignupCode(writer http.ResponseWriter, request *http.Request) {
	var payload verifySignupPayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Required(FieldOTPCode, payload.OTPCode).
		Digits(FieldOTPCode, payload.OTPCode, CodeLength).
		Required(FieldFirstName, payload.FirstName).
		MaxLen(FieldFirstName, payload.FirstName, 100).
		Required(FieldLastName, payload.LastName).
		MaxLen(FieldLastName, payload.LastName, 100).
		Required(FieldAccountName, payload.AccountName).
		MaxLen(FieldAccountName, payload.AccountName, 200).
		Required(FieldBusinessType, payload.BusinessType).
		MaxLen(FieldBusinessType, payload.BusinessType, 100).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.VerifySignupCode(request.Context(), SignupInput{
		Email:        payload.Email,
		Code:         payload.OTPCode,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		AccountName:  payload.AccountName,
		BusinessType: payload.BusinessType,
		UserAgent:    request.UserAgent(),
		IPAddress:    request.RemoteAddr,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWith(writer, "Account created successfully", sessionExtra(session))
}

/*
RefreshToken handles POST /auth/refresh.

Description: Mints a fresh access token against a live refresh session.
The refresh token itself is never rotated here.
*/
func (handler *Handler) RefreshToken(writer http.ResponseWriter, request *http.Request) {
	var payload refreshTokenPayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldRefreshToken, payload.RefreshToken).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	accessToken, expiresIn, err := handler.service.RefreshAccessToken(request.Context(), payload.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWith(writer, "Token refreshed", map[string]any{
		FieldAccessToken: accessToken,
		FieldExpiresIn:   expiresIn,
	})
}

/*
Logout handles POST /auth/logout.

Description: Revokes the session behind the refresh token. Idempotent.
*/
func (handler *Handler) Logout(writer http.ResponseWriter, request *http.Request) {
	var payload refreshTokenPayload
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldRefreshToken, payload.RefreshToken).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Logout(request.Context(), payload.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Logged out")
}

// sessionExtra maps an [AuthSession] onto the flat response envelope fields.
func sessionExtra(session *AuthSession) map[string]any {
	return map[string]any{
		FieldUser:         session.User,
		FieldAccount:      session.Account,
		FieldAccessToken:  session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		FieldExpiresIn:    session.ExpiresIn,
	}
}
