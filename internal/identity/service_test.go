// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvine/fieldvine/internal/platform/apperr"
	"github.com/fieldvine/fieldvine/internal/platform/sec"
)

// # In-Memory Fakes

type memoryUserRepository struct {
	users map[string]*User // keyed by lowercase email
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*User)}
}

func (repository *memoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	for _, user := range repository.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (repository *memoryUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := repository.users[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return user, nil
}

func (repository *memoryUserRepository) Create(_ context.Context, user *User) error {
	repository.users[strings.ToLower(user.Email)] = user
	return nil
}

func (repository *memoryUserRepository) TouchLastLogin(_ context.Context, userID string, when time.Time) error {
	for _, user := range repository.users {
		if user.ID == userID {
			user.LastLogin = &when
			return nil
		}
	}
	return apperr.NotFound("Account")
}

type memoryAccountRepository struct {
	accounts map[string]*Account
	users    *memoryUserRepository
}

func newMemoryAccountRepository(users *memoryUserRepository) *memoryAccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*Account), users: users}
}

func (repository *memoryAccountRepository) FindByID(_ context.Context, id string) (*Account, error) {
	account, ok := repository.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return account, nil
}

func (repository *memoryAccountRepository) CreateWithOwner(context context.Context, account *Account, owner *User) error {
	repository.accounts[account.ID] = account
	return repository.users.Create(context, owner)
}

type memorySessionRepository struct {
	sessions map[string]*Session // keyed by token hash
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*Session)}
}

func (repository *memorySessionRepository) Create(_ context.Context, session *Session) error {
	repository.sessions[session.TokenHash] = session
	return nil
}

func (repository *memorySessionRepository) FindByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	session, ok := repository.sessions[tokenHash]
	if !ok || session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return nil, apperr.NotFound("Session")
	}
	return session, nil
}

func (repository *memorySessionRepository) Revoke(_ context.Context, sessionID string) error {
	for _, session := range repository.sessions {
		if session.ID == sessionID {
			session.IsRevoked = true
			return nil
		}
	}
	return apperr.NotFound("Session")
}

func (repository *memorySessionRepository) DeleteExpired(_ context.Context) error {
	return nil
}

type memoryCodeRepository struct {
	codes    map[string]string
	attempts map[string]int64
}

func newMemoryCodeRepository() *memoryCodeRepository {
	return &memoryCodeRepository{codes: make(map[string]string), attempts: make(map[string]int64)}
}

func (repository *memoryCodeRepository) key(purpose CodePurpose, email string) string {
	return string(purpose) + ":" + strings.ToLower(email)
}

func (repository *memoryCodeRepository) SetCode(_ context.Context, purpose CodePurpose, email, codeHash string, _ time.Duration) error {
	key := repository.key(purpose, email)
	repository.codes[key] = codeHash
	delete(repository.attempts, key)
	return nil
}

func (repository *memoryCodeRepository) GetCode(_ context.Context, purpose CodePurpose, email string) (string, error) {
	codeHash, ok := repository.codes[repository.key(purpose, email)]
	if !ok {
		return "", apperr.NotFound("Verification code")
	}
	return codeHash, nil
}

func (repository *memoryCodeRepository) DeleteCode(_ context.Context, purpose CodePurpose, email string) error {
	key := repository.key(purpose, email)
	delete(repository.codes, key)
	delete(repository.attempts, key)
	return nil
}

func (repository *memoryCodeRepository) IncrementAttempts(_ context.Context, purpose CodePurpose, email string, _ time.Duration) (int64, error) {
	key := repository.key(purpose, email)
	repository.attempts[key]++
	return repository.attempts[key], nil
}

// captureSender records the last code handed to the delivery transport.
type captureSender struct {
	lastEmail string
	lastCode  string
}

func (sender *captureSender) SendCode(_ context.Context, email, code string, _ CodePurpose) error {
	sender.lastEmail = email
	sender.lastCode = code
	return nil
}

// staticTokenProvider mints deterministic three-segment tokens.
type staticTokenProvider struct {
	minted int
}

func (provider *staticTokenProvider) GenerateAccessToken(userID, _, _, _ string, _ time.Duration) (string, error) {
	provider.minted++
	return fmt.Sprintf("header.%s-%d.signature", userID, provider.minted), nil
}

// # Test Harness

type serviceHarness struct {
	service  *Service
	users    *memoryUserRepository
	accounts *memoryAccountRepository
	sessions *memorySessionRepository
	codes    *memoryCodeRepository
	sender   *captureSender
	tokens   *staticTokenProvider
}

func newServiceHarness() *serviceHarness {
	users := newMemoryUserRepository()
	accounts := newMemoryAccountRepository(users)
	sessions := newMemorySessionRepository()
	codes := newMemoryCodeRepository()
	sender := &captureSender{}
	tokens := &staticTokenProvider{}

	return &serviceHarness{
		service:  NewService(users, accounts, sessions, codes, sender, tokens),
		users:    users,
		accounts: accounts,
		sessions: sessions,
		codes:    codes,
		sender:   sender,
		tokens:   tokens,
	}
}

// seedUser registers an active user with an owning account.
func (harness *serviceHarness) seedUser(t *testing.T, email string) *User {
	t.Helper()

	account := &Account{
		ID:               "acc-1",
		Name:             "Vine & Branch Plumbing",
		BusinessType:     "plumbing",
		SubscriptionPlan: DefaultSubscriptionPlan,
		Status:           StatusActive,
	}
	harness.accounts.accounts[account.ID] = account

	user := &User{
		ID:            "usr-1",
		AccountID:     account.ID,
		Email:         email,
		FirstName:     "Ada",
		LastName:      "Vine",
		Role:          sec.RoleOwner,
		Status:        StatusActive,
		EmailVerified: true,
	}
	require.NoError(t, harness.users.Create(context.Background(), user))
	return user
}

// # Code Issuance Tests

func TestRequestLoginCode(t *testing.T) {
	t.Run("unknown email is rejected", func(t *testing.T) {
		harness := newServiceHarness()

		err := harness.service.RequestLoginCode(context.Background(), "ghost@example.com")

		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 404, appError.HTTPStatus)
		assert.Equal(t, "Account not found", appError.Message)
	})

	t.Run("registered email receives a code", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")

		err := harness.service.RequestLoginCode(context.Background(), "ada@example.com")

		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", harness.sender.lastEmail)
		assert.Len(t, harness.sender.lastCode, CodeLength)

		// Only the hash is stored, never the plain code.
		storedHash, err := harness.codes.GetCode(context.Background(), PurposeLogin, "ada@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, harness.sender.lastCode, storedHash)
		assert.True(t, sec.CheckCodeHash(harness.sender.lastCode, storedHash))
	})
}

func TestRequestSignupCode(t *testing.T) {
	t.Run("registered email is rejected", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")

		err := harness.service.RequestSignupCode(context.Background(), "ada@example.com")

		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 409, appError.HTTPStatus)
	})

	t.Run("new email receives a code", func(t *testing.T) {
		harness := newServiceHarness()

		err := harness.service.RequestSignupCode(context.Background(), "new@example.com")

		require.NoError(t, err)
		assert.Equal(t, "new@example.com", harness.sender.lastEmail)
		assert.Len(t, harness.sender.lastCode, CodeLength)
	})
}

// # Verification Tests

func TestVerifyLoginCode(t *testing.T) {
	t.Run("valid code establishes a session", func(t *testing.T) {
		harness := newServiceHarness()
		user := harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))

		session, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{
			Email:     "ada@example.com",
			Code:      harness.sender.lastCode,
			UserAgent: "test-agent",
			IPAddress: "203.0.113.4",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, session.AccessToken)
		assert.NotEmpty(t, session.RefreshToken)
		assert.Equal(t, int64(AccessTokenTTL.Seconds()), session.ExpiresIn)
		assert.Equal(t, user.ID, session.User.ID)
		assert.Equal(t, "acc-1", session.Account.ID)
		assert.NotNil(t, session.User.LastLogin)

		// The refresh session is stored by hash, never in the clear.
		stored, err := harness.sessions.FindByTokenHash(context.Background(), sec.HashToken(session.RefreshToken))
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.UserID)
		assert.Equal(t, "test-agent", stored.UserAgent)
	})

	t.Run("code is single use", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))
		code := harness.sender.lastCode

		_, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: code})
		require.NoError(t, err)

		_, err = harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: code})
		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 401, appError.HTTPStatus)
	})

	t.Run("wrong code is rejected", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))

		_, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: "000000"})

		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 401, appError.HTTPStatus)
	})

	t.Run("attempt limit invalidates the code", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))
		code := harness.sender.lastCode

		for i := 0; i < MaxCodeAttempts; i++ {
			_, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: "999999"})
			if code == "999999" {
				t.Skip("generated code collided with the guess")
			}
			require.Error(t, err)
		}

		// The correct code is now burned as well.
		_, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: code})
		require.Error(t, err)
	})
}

func TestVerifySignupCode(t *testing.T) {
	t.Run("valid code provisions account and owner", func(t *testing.T) {
		harness := newServiceHarness()
		require.NoError(t, harness.service.RequestSignupCode(context.Background(), "founder@example.com"))

		session, err := harness.service.VerifySignupCode(context.Background(), SignupInput{
			Email:        "founder@example.com",
			Code:         harness.sender.lastCode,
			FirstName:    "Grace",
			LastName:     "Hollis",
			AccountName:  "Hollis HVAC",
			BusinessType: "hvac",
		})

		require.NoError(t, err)
		assert.Equal(t, sec.RoleOwner, session.User.Role)
		assert.True(t, session.User.EmailVerified)
		assert.Equal(t, StatusActive, session.User.Status)
		assert.Equal(t, "Hollis HVAC", session.Account.Name)
		assert.Equal(t, DefaultSubscriptionPlan, session.Account.SubscriptionPlan)
		assert.Equal(t, session.Account.ID, session.User.AccountID)

		// The owner can immediately log in.
		_, err = harness.users.FindByEmail(context.Background(), "founder@example.com")
		require.NoError(t, err)
	})

	t.Run("email registered after code request is rejected", func(t *testing.T) {
		harness := newServiceHarness()
		require.NoError(t, harness.service.RequestSignupCode(context.Background(), "late@example.com"))
		code := harness.sender.lastCode

		harness.seedUser(t, "late@example.com")

		_, err := harness.service.VerifySignupCode(context.Background(), SignupInput{
			Email: "late@example.com", Code: code,
			FirstName: "A", LastName: "B", AccountName: "C", BusinessType: "other",
		})

		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 409, appError.HTTPStatus)
	})
}

// # Session Tests

func TestRefreshAccessToken(t *testing.T) {
	t.Run("live session yields a new access token without rotation", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))
		session, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: harness.sender.lastCode})
		require.NoError(t, err)

		accessToken, expiresIn, err := harness.service.RefreshAccessToken(context.Background(), session.RefreshToken)

		require.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEqual(t, session.AccessToken, accessToken)
		assert.Equal(t, int64(AccessTokenTTL.Seconds()), expiresIn)

		// The same refresh token keeps working: no rotation.
		secondToken, _, err := harness.service.RefreshAccessToken(context.Background(), session.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, accessToken, secondToken)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		harness := newServiceHarness()

		_, _, err := harness.service.RefreshAccessToken(context.Background(), "not-a-real-token")

		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 401, appError.HTTPStatus)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the session", func(t *testing.T) {
		harness := newServiceHarness()
		harness.seedUser(t, "ada@example.com")
		require.NoError(t, harness.service.RequestLoginCode(context.Background(), "ada@example.com"))
		session, err := harness.service.VerifyLoginCode(context.Background(), VerifyLoginInput{Email: "ada@example.com", Code: harness.sender.lastCode})
		require.NoError(t, err)

		require.NoError(t, harness.service.Logout(context.Background(), session.RefreshToken))

		_, _, err = harness.service.RefreshAccessToken(context.Background(), session.RefreshToken)
		require.Error(t, err)
	})

	t.Run("unknown token is a successful logout", func(t *testing.T) {
		harness := newServiceHarness()

		assert.NoError(t, harness.service.Logout(context.Background(), "unknown-token"))
	})
}
