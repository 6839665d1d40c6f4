// Package auth manages login sessions and connection codes. Sessions are
// bearer tokens stored as Redis hashes with a TTL; presence markers record
// which users currently hold a live channel.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the Redis key prefix for session token hashes.
	TokenPrefix = "auth:"

	// OnlinePrefix is the Redis key prefix for presence markers.
	OnlinePrefix = "online:"

	// SessionTTL is the time-to-live for session tokens. Each authenticated
	// request refreshes it.
	SessionTTL = 24 * time.Hour

	// CodeLength is the number of digits in a connection code.
	CodeLength = 10
)

// Identity is the authenticated principal bound to a session token.
type Identity struct {
	Username       string `redis:"username"`
	ConnectionCode string `redis:"connection_code"`
}

// Store manages session tokens and presence in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a session store connected to Redis at the given address.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("auth: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing Redis client. Used by tests.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Issue creates a new session token bound to the given identity.
func (s *Store) Issue(ctx context.Context, id Identity) (string, error) {
	token := uuid.New().String()
	key := TokenPrefix + token

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":        id.Username,
		"connection_code": id.ConnectionCode,
	})
	pipe.Expire(ctx, key, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Lookup resolves a session token to its identity and refreshes the TTL.
// Returns nil if the token is unknown or expired.
func (s *Store) Lookup(ctx context.Context, token string) (*Identity, error) {
	key := TokenPrefix + token

	var id Identity
	if err := s.client.HGetAll(ctx, key).Scan(&id); err != nil {
		return nil, fmt.Errorf("auth: lookup token: %w", err)
	}
	if id.ConnectionCode == "" {
		return nil, nil // not found
	}

	s.client.Expire(ctx, key, SessionTTL)
	return &id, nil
}

// Revoke deletes a session token.
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, TokenPrefix+token).Err()
}

// SetOnline records that the user holds a live channel on the named server
// instance.
func (s *Store) SetOnline(ctx context.Context, code, serverName string) error {
	return s.client.Set(ctx, OnlinePrefix+code, serverName, SessionTTL).Err()
}

// SetOffline clears the user's presence marker.
func (s *Store) SetOffline(ctx context.Context, code string) error {
	return s.client.Del(ctx, OnlinePrefix+code).Err()
}

// IsOnline reports whether the user currently holds a live channel.
func (s *Store) IsOnline(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, OnlinePrefix+code).Result()
	if err != nil {
		return false, fmt.Errorf("auth: presence check: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}

// NewConnectionCode generates a 10-digit connection code. Uniqueness is
// enforced by the users table; callers retry on a duplicate.
func NewConnectionCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate code: %w", err)
	}
	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = '0' + b%10
	}
	return string(code), nil
}
