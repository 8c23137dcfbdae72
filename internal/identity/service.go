// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldvine/fieldvine/internal/platform/apperr"
	"github.com/fieldvine/fieldvine/internal/platform/sec"
	"github.com/fieldvine/fieldvine/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	//
	// # Parameters
	//   - userID: The ID of the user.
	//   - accountID: The ID of the owning business account.
	//   - email: The user's email address.
	//   - role: The user's role within the account.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed JWT string, or an error if signing fails.
	GenerateAccessToken(userID, accountID, email, role string, timeToLive time.Duration) (string, error)
}

// Service implements the passwordless authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to code issuance,
// verification, or token minting must be reviewed by the security team.
type Service struct {
	userRepository    UserRepository
	accountRepository AccountRepository
	sessionRepository SessionRepository
	codeRepository    CodeRepository
	codeSender        CodeSender
	tokenProvider     TokenProvider
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	accountRepo AccountRepository,
	sessionRepo SessionRepository,
	codeRepo CodeRepository,
	sender CodeSender,
	tokenProv TokenProvider,
) *Service {
	return &Service{
		userRepository:    userRepo,
		accountRepository: accountRepo,
		sessionRepository: sessionRepo,
		codeRepository:    codeRepo,
		codeSender:        sender,
		tokenProvider:     tokenProv,
	}
}

// # Code Issuance

/*
RequestLoginCode issues a one-time login code for an existing user.

Description: Verifies the email belongs to a registered user, generates a
6-digit code, stores its bcrypt hash in volatile storage, and hands the
plain code to the delivery transport.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: apperr.NotFound for unknown emails, or generation/delivery failures
*/
func (service *Service) RequestLoginCode(context context.Context, email string) error {

	// Only registered users may request a login code. The NotFound message
	// is shown verbatim in the login form.
	if _, err := service.userRepository.FindByEmail(context, email); err != nil {
		return err
	}

	return service.issueCode(context, PurposeLogin, email)
}

/*
RequestSignupCode issues a one-time signup code for a new email address.

Description: Rejects emails that already belong to a user, then follows the
same code issuance path as login.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: apperr.Conflict for registered emails, or generation/delivery failures
*/
func (service *Service) RequestSignupCode(context context.Context, email string) error {

	// An existing user must log in instead of signing up again.
	if _, err := service.userRepository.FindByEmail(context, email); err == nil {
		return apperr.Conflict("This email is already registered")
	}

	return service.issueCode(context, PurposeSignup, email)
}

// issueCode generates, stores, and dispatches a one-time code.
func (service *Service) issueCode(context context.Context, purpose CodePurpose, email string) error {
	code, err := sec.GenerateNumericCode(CodeLength)
	if err != nil {
		return fmt.Errorf("identity_service_code_generation_failed: %w", err)
	}

	// Codes are low-entropy, so only the bcrypt hash is ever stored.
	codeHash, err := sec.HashCode(code)
	if err != nil {
		return fmt.Errorf("identity_service_code_hash_failed: %w", err)
	}

	if err := service.codeRepository.SetCode(context, purpose, email, codeHash, CodeTTL); err != nil {
		return fmt.Errorf("identity_service_code_store_failed: %w", err)
	}

	if err := service.codeSender.SendCode(context, email, code, purpose); err != nil {
		// A stored but undeliverable code is useless; remove it so the user
		// can immediately request another.
		_ = service.codeRepository.DeleteCode(context, purpose, email)
		return fmt.Errorf("identity_service_code_delivery_failed: %w", err)
	}

	return nil
}

// # Code Verification

// VerifyLoginInput carries the login verification payload.
type VerifyLoginInput struct {
	Email     string
	Code      string
	UserAgent string
	IPAddress string
}

/*
VerifyLoginCode exchanges a valid one-time code for a session.

Description: Validates the code against its stored hash with attempt
limiting, then mints the access/refresh credential pair and stamps the
user's last login.

Parameters:
  - context: context.Context
  - input: VerifyLoginInput

Returns:
  - *AuthSession: Transport-ready session credentials and identity snapshot
  - error: Unauthorized for bad/expired codes, or storage failures
*/
func (service *Service) VerifyLoginCode(context context.Context, input VerifyLoginInput) (*AuthSession, error) {
	if err := service.consumeCode(context, PurposeLogin, input.Email, input.Code); err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByEmail(context, input.Email)
	if err != nil {
		return nil, apperr.Unauthorized("Account not found or suspended")
	}

	return service.establishSession(context, user, input.UserAgent, input.IPAddress)
}

// SignupInput carries the signup completion payload.
type SignupInput struct {
	Email        string
	Code         string
	FirstName    string
	LastName     string
	AccountName  string
	BusinessType string
	UserAgent    string
	IPAddress    string
}

/*
VerifySignupCode completes a signup: verifies the code, provisions the
account and its owner, and establishes the first session.

Description: Account and owner are created atomically. The owner is born
with a verified email since possession of the code proves ownership.

Parameters:
  - context: context.Context
  - input: SignupInput

Returns:
  - *AuthSession: Credentials and the freshly created identity snapshot
  - error: Unauthorized, Conflict, or storage failures
*/
func (service *Service) VerifySignupCode(context context.Context, input SignupInput) (*AuthSession, error) {
	if err := service.consumeCode(context, PurposeSignup, input.Email, input.Code); err != nil {
		return nil, err
	}

	// Guard against a race where the email registered between code request
	// and verification.
	if _, err := service.userRepository.FindByEmail(context, input.Email); err == nil {
		return nil, apperr.Conflict("This email is already registered")
	}

	account := &Account{
		ID:               uuid.New(),
		Name:             input.AccountName,
		BusinessType:     input.BusinessType,
		SubscriptionPlan: DefaultSubscriptionPlan,
		Status:           StatusActive,
	}

	owner := &User{
		ID:            uuid.New(),
		AccountID:     account.ID,
		Email:         input.Email,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Role:          sec.RoleOwner,
		Status:        StatusActive,
		EmailVerified: true,
	}

	if err := service.accountRepository.CreateWithOwner(context, account, owner); err != nil {
		return nil, fmt.Errorf("identity_service_signup_provision_failed: %w", err)
	}

	return service.establishSession(context, owner, input.UserAgent, input.IPAddress)
}

// consumeCode validates a submitted code against its stored hash and deletes
// it on success. Attempt limiting invalidates the code after too many misses.
func (service *Service) consumeCode(context context.Context, purpose CodePurpose, email, code string) error {
	codeHash, err := service.codeRepository.GetCode(context, purpose, email)
	if err != nil {
		return apperr.Unauthorized("Invalid or expired code")
	}

	attempts, err := service.codeRepository.IncrementAttempts(context, purpose, email, CodeTTL)
	if err != nil {
		return fmt.Errorf("identity_service_attempt_count_failed: %w", err)
	}

	if attempts > MaxCodeAttempts {
		_ = service.codeRepository.DeleteCode(context, purpose, email)
		return apperr.Unauthorized("Too many attempts. Request a new code.")
	}

	if !sec.CheckCodeHash(code, codeHash) {
		return apperr.Unauthorized("Invalid or expired code")
	}

	// Single use: a verified code can never be replayed.
	if err := service.codeRepository.DeleteCode(context, purpose, email); err != nil {
		return fmt.Errorf("identity_service_code_consume_failed: %w", err)
	}

	return nil
}

// establishSession mints the credential pair and persists the refresh session.
func (service *Service) establishSession(context context.Context, user *User, userAgent, ipAddress string) (*AuthSession, error) {
	account, err := service.accountRepository.FindByID(context, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_account_lookup_failed: %w", err)
	}

	accessToken, err := service.tokenProvider.GenerateAccessToken(user.ID, account.ID, user.Email, string(user.Role), AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("identity_service_token_generation_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("identity_service_refresh_token_failed: %w", err)
	}

	session := &Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: time.Now().Add(RefreshTokenTTL),
		IsRevoked: false,
	}

	if err := service.sessionRepository.Create(context, session); err != nil {
		return nil, fmt.Errorf("identity_service_session_creation_failed: %w", err)
	}

	now := time.Now()
	if err := service.userRepository.TouchLastLogin(context, user.ID, now); err != nil {
		return nil, fmt.Errorf("identity_service_last_login_failed: %w", err)
	}
	user.LastLogin = &now

	return &AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTokenTTL.Seconds()),
		User:         user,
		Account:      account,
	}, nil
}

// # Session Management

/*
RefreshAccessToken mints a new access token against a live refresh session.

Description: The refresh token is NOT rotated — it stays valid until its own
expiry or an explicit logout. Only the short-lived access token is replaced.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - string: New signed access token
  - int64: Access token lifetime in seconds
  - error: Unauthorized or storage failures
*/
func (service *Service) RefreshAccessToken(context context.Context, refreshToken string) (string, int64, error) {
	tokenHash := sec.HashToken(refreshToken)

	session, err := service.sessionRepository.FindByTokenHash(context, tokenHash)
	if err != nil {
		return "", 0, apperr.Unauthorized("Invalid or expired refresh token")
	}

	user, err := service.userRepository.FindByID(context, session.UserID)
	if err != nil {
		return "", 0, apperr.Unauthorized("Account not found or suspended")
	}

	accessToken, err := service.tokenProvider.GenerateAccessToken(user.ID, user.AccountID, user.Email, string(user.Role), AccessTokenTTL)
	if err != nil {
		return "", 0, fmt.Errorf("identity_service_refresh_access_token_failed: %w", err)
	}

	return accessToken, int64(AccessTokenTTL.Seconds()), nil
}

/*
Logout permanently revokes the session behind a refresh token.

Description: Idempotent — an unknown or already-revoked token is treated
as a successful logout.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	tokenHash := sec.HashToken(refreshToken)

	session, err := service.sessionRepository.FindByTokenHash(context, tokenHash)
	if err != nil {
		return nil
	}

	if err := service.sessionRepository.Revoke(context, session.ID); err != nil {
		return fmt.Errorf("identity_service_logout_failed: %w", err)
	}

	return nil
}
