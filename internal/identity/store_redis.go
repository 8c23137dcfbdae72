// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldvine/fieldvine/internal/platform/apperr"
	"github.com/fieldvine/fieldvine/internal/platform/constants"
)

// RedisCodeRepository implements CodeRepository using Redis.
//
// One-time codes live exclusively in Redis: they are volatile by definition
// and their expiry is enforced by key TTL rather than application logic.
type RedisCodeRepository struct {
	client *redis.Client
}

// NewCodeRepository creates a new Redis-backed CodeRepository.
func NewCodeRepository(client *redis.Client) *RedisCodeRepository {
	return &RedisCodeRepository{client: client}
}

// codeKey builds the Redis key for a purpose+email pair.
func codeKey(purpose CodePurpose, email string) string {
	if purpose == PurposeSignup {
		return constants.RedisPrefixSignupCode + email
	}
	return constants.RedisPrefixLoginCode + email
}

// attemptsKey builds the Redis key for the failed-attempt counter.
func attemptsKey(purpose CodePurpose, email string) string {
	return constants.RedisPrefixCodeAttempts + string(purpose) + ":" + email
}

/*
SetCode stores a hashed one-time code with a TTL.

Description: Overwrites any pending code for the same purpose+email and
resets the attempt counter, so re-issuing a code invalidates the old one.

Parameters:
  - context: context.Context
  - purpose: CodePurpose
  - email: string
  - codeHash: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisCodeRepository) SetCode(context context.Context, purpose CodePurpose, email, codeHash string, ttl time.Duration) error {
	if err := repository.client.Set(context, codeKey(purpose, email), codeHash, ttl).Err(); err != nil {
		return fmt.Errorf("redis_code_set_failed: %w", err)
	}

	// A fresh code starts from a clean attempt counter.
	if err := repository.client.Del(context, attemptsKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("redis_code_attempts_reset_failed: %w", err)
	}

	return nil
}

/*
GetCode retrieves the stored code hash for an email.

Description: Returns apperr.NotFound if the code is absent or expired.

Parameters:
  - context: context.Context
  - purpose: CodePurpose
  - email: string

Returns:
  - string: Code hash
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisCodeRepository) GetCode(context context.Context, purpose CodePurpose, email string) (string, error) {
	codeHash, err := repository.client.Get(context, codeKey(purpose, email)).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Verification code")
		}
		return "", fmt.Errorf("redis_code_get_failed: %w", err)
	}

	return codeHash, nil
}

/*
DeleteCode removes a consumed or invalidated code and its attempt counter.

Parameters:
  - context: context.Context
  - purpose: CodePurpose
  - email: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisCodeRepository) DeleteCode(context context.Context, purpose CodePurpose, email string) error {
	if err := repository.client.Del(context, codeKey(purpose, email), attemptsKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("redis_code_delete_failed: %w", err)
	}

	return nil
}

/*
IncrementAttempts bumps and returns the failed-attempt counter.

Description: The counter expires alongside the code so a stale counter can
never block a freshly issued code.

Parameters:
  - context: context.Context
  - purpose: CodePurpose
  - email: string
  - ttl: time.Duration

Returns:
  - int64: Attempt count after the increment
  - error: Persistence failures
*/
func (repository *RedisCodeRepository) IncrementAttempts(context context.Context, purpose CodePurpose, email string, ttl time.Duration) (int64, error) {
	key := attemptsKey(purpose, email)

	count, err := repository.client.Incr(context, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_code_attempts_incr_failed: %w", err)
	}

	// Set the expiry on first increment only.
	if count == 1 {
		if err := repository.client.Expire(context, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("redis_code_attempts_expire_failed: %w", err)
		}
	}

	return count, nil
}
