// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvine/fieldvine/pkg/credstore"
)

// sessionReply is a canned successful verification envelope.
func sessionReply() map[string]any {
	return map[string]any{
		"success":       true,
		"message":       "Login successful",
		"access_token":  "header.payload.signature",
		"refresh_token": "refresh-token-1",
		"expires_in":    900,
		"user": map[string]any{
			"id": "usr-1", "account_id": "acc-1", "email": "ada@example.com",
			"first_name": "Ada", "last_name": "Vine", "role": "owner",
			"status": "active", "email_verified": true,
		},
		"account": map[string]any{
			"id": "acc-1", "name": "Vine & Branch Plumbing",
			"business_type": "plumbing", "subscription_plan": "trial", "status": "active",
		},
	}
}

// newGatewayServer builds a gateway against a scripted auth server.
func newGatewayServer(t *testing.T, handler http.HandlerFunc) (*Gateway, *credstore.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := credstore.NewMemoryStore()
	return New(server.URL, store), store
}

func TestSendLoginCode(t *testing.T) {
	t.Run("success has no storage side effect", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/auth/login", request.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])

			_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "Verification code sent to your email"})
		})

		err := gateway.SendLoginCode(context.Background(), "ada@example.com")

		require.NoError(t, err)
		_, err = store.Get(credstore.KeyAccessToken)
		assert.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("server rejection passes the message through verbatim", func(t *testing.T) {
		gateway, _ := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(writer).Encode(map[string]any{"success": false, "message": "Account not found", "code": "NOT_FOUND"})
		})

		err := gateway.SendLoginCode(context.Background(), "ghost@example.com")

		var rejected *ServerRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "Account not found", rejected.Message)
		assert.Equal(t, "NOT_FOUND", rejected.Code)
		assert.Equal(t, "Account not found", UserMessage(err))
	})

	t.Run("transport failure is a network error", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		gateway := New("http://127.0.0.1:1", store) // nothing listens here

		err := gateway.SendLoginCode(context.Background(), "ada@example.com")

		var network *NetworkError
		require.ErrorAs(t, err, &network)
		assert.Equal(t, NetworkErrorMessage, UserMessage(err))
	})

	t.Run("malformed payload is treated as a network error", func(t *testing.T) {
		gateway, _ := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte("<html>gateway timeout</html>"))
		})

		err := gateway.SendLoginCode(context.Background(), "ada@example.com")

		var network *NetworkError
		require.ErrorAs(t, err, &network)
	})
}

func TestVerifyLoginCode(t *testing.T) {
	t.Run("success persists all four session keys", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/auth/verify-login", request.URL.Path)
			_ = json.NewEncoder(writer).Encode(sessionReply())
		})

		session, err := gateway.VerifyLoginCode(context.Background(), "ada@example.com", "123456")

		require.NoError(t, err)
		assert.Equal(t, "header.payload.signature", session.AccessToken)
		assert.Equal(t, int64(900), session.ExpiresIn)
		assert.Equal(t, "usr-1", session.User.ID)
		assert.Equal(t, "acc-1", session.Account.ID)

		for _, key := range credstore.SessionKeys {
			value, err := store.Get(key)
			require.NoError(t, err, key)
			assert.NotEmpty(t, value, key)
		}

		// The stored snapshots are the server's serialized forms.
		userJSON, err := store.Get(credstore.KeyUser)
		require.NoError(t, err)
		var user Identity
		require.NoError(t, json.Unmarshal([]byte(userJSON), &user))
		assert.Equal(t, "ada@example.com", user.Email)
	})

	t.Run("rejection leaves storage untouched", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]any{"success": false, "message": "Invalid or expired code", "code": "UNAUTHORIZED"})
		})

		_, err := gateway.VerifyLoginCode(context.Background(), "ada@example.com", "000000")

		var rejected *ServerRejectedError
		require.ErrorAs(t, err, &rejected)
		for _, key := range credstore.SessionKeys {
			_, err := store.Get(key)
			assert.ErrorIs(t, err, credstore.ErrNotFound, key)
		}
	})

	t.Run("incomplete session reply writes nothing", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			reply := sessionReply()
			delete(reply, "refresh_token")
			_ = json.NewEncoder(writer).Encode(reply)
		})

		_, err := gateway.VerifyLoginCode(context.Background(), "ada@example.com", "123456")

		var network *NetworkError
		require.ErrorAs(t, err, &network)
		_, err = store.Get(credstore.KeyAccessToken)
		assert.ErrorIs(t, err, credstore.ErrNotFound)
	})
}

func TestCompleteSignup(t *testing.T) {
	t.Run("sends the profile fields and persists the session", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/auth/verify-signup", request.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "Grace", body["first_name"])
			assert.Equal(t, "Hollis HVAC", body["account_name"])

			_ = json.NewEncoder(writer).Encode(sessionReply())
		})

		session, err := gateway.CompleteSignup(context.Background(), "founder@example.com", "123456", SignupFields{
			FirstName:    "Grace",
			LastName:     "Hollis",
			AccountName:  "Hollis HVAC",
			BusinessType: "hvac",
		})

		require.NoError(t, err)
		assert.NotNil(t, session.User)
		value, err := store.Get(credstore.KeyRefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-token-1", value)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("overwrites only the access token", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/auth/refresh", request.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "refresh-token-1", body["refresh_token"])

			_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "Token refreshed", "access_token": "new.access.token"})
		})
		require.NoError(t, store.Set(credstore.KeyAccessToken, "old.access.token"))
		require.NoError(t, store.Set(credstore.KeyRefreshToken, "refresh-token-1"))

		token, err := gateway.RefreshAccessToken(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "new.access.token", token)

		access, err := store.Get(credstore.KeyAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "new.access.token", access)

		refresh, err := store.Get(credstore.KeyRefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-token-1", refresh)
	})

	t.Run("missing refresh token fails without a network call", func(t *testing.T) {
		called := false
		gateway, _ := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			called = true
		})

		_, err := gateway.RefreshAccessToken(context.Background())

		assert.ErrorIs(t, err, ErrNoRefreshToken)
		assert.False(t, called)
	})

	t.Run("rejection leaves storage untouched", func(t *testing.T) {
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]any{"success": false, "message": "Invalid or expired refresh token", "code": "UNAUTHORIZED"})
		})
		require.NoError(t, store.Set(credstore.KeyAccessToken, "old.access.token"))
		require.NoError(t, store.Set(credstore.KeyRefreshToken, "revoked-token"))

		_, err := gateway.RefreshAccessToken(context.Background())

		var rejected *ServerRejectedError
		require.True(t, errors.As(err, &rejected))

		access, err := store.Get(credstore.KeyAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "old.access.token", access)
	})
}

func TestLogout(t *testing.T) {
	t.Run("clears the four keys without a network call", func(t *testing.T) {
		called := false
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			called = true
		})
		for _, key := range credstore.SessionKeys {
			require.NoError(t, store.Set(key, "value"))
		}

		require.NoError(t, gateway.Logout())

		assert.False(t, called)
		for _, key := range credstore.SessionKeys {
			_, err := store.Get(key)
			assert.ErrorIs(t, err, credstore.ErrNotFound, key)
		}
	})
}

func TestRevoke(t *testing.T) {
	t.Run("revokes server-side and clears locally", func(t *testing.T) {
		var revokedToken string
		gateway, store := newGatewayServer(t, func(writer http.ResponseWriter, request *http.Request) {
			require.Equal(t, "/auth/logout", request.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			revokedToken = body["refresh_token"]
			_ = json.NewEncoder(writer).Encode(map[string]any{"success": true, "message": "Logged out"})
		})
		require.NoError(t, store.Set(credstore.KeyRefreshToken, "refresh-token-1"))

		require.NoError(t, gateway.Revoke(context.Background()))

		assert.Equal(t, "refresh-token-1", revokedToken)
		_, err := store.Get(credstore.KeyRefreshToken)
		assert.ErrorIs(t, err, credstore.ErrNotFound)
	})
}
