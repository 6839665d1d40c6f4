// Package ban manages temporary suspensions of connection codes, backed by
// Redis. A suspension is a key-value pair with TTL-based expiry:
//
//	Key:   ban:<connection_code>
//	Value: <reason>
//	TTL:   suspension duration
//
// Suspensions are driven by moderation strikes: each blocked message adds a
// strike, and enough strikes inside the strike window trigger an automatic
// suspension whose duration escalates with repeat offenses.
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BanPrefix is the Redis key prefix for suspension records.
	BanPrefix = "ban:"

	// StrikesPrefix is the Redis key prefix for strike counters.
	StrikesPrefix = "strikes:"

	// Escalating suspension durations.
	Ban15Min  = 15 * time.Minute // 1st suspension
	Ban1Hour  = 1 * time.Hour    // 2nd suspension
	Ban24Hour = 24 * time.Hour   // 3rd+ suspension

	// StrikesTTL is how long the strike counter lives in Redis. After 24h
	// without new strikes the counter resets to zero.
	StrikesTTL = 24 * time.Hour

	// AutoBanThreshold is the number of strikes within StrikesTTL that
	// triggers an automatic suspension.
	AutoBanThreshold = 3
)

// Store manages suspension records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned checks whether a connection code is currently suspended.
// Returns (banned, remainingSeconds, reason, error). Redis errors are
// returned so callers can decide how to handle them; the server fails open
// so a Redis outage never locks everyone out.
func (s *Store) IsBanned(ctx context.Context, code string) (bool, int, string, error) {
	key := BanPrefix + code

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// The suspension exists but the TTL read failed. Report banned
		// with 0 remaining rather than swallowing the suspension.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}
	return true, remaining, reason, nil
}

// Ban suspends a connection code for the given duration. The suspension
// expires automatically.
func (s *Store) Ban(ctx context.Context, code string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, BanPrefix+code, reason, duration).Err()
}

// Unban lifts a suspension immediately.
func (s *Store) Unban(ctx context.Context, code string) error {
	return s.client.Del(ctx, BanPrefix+code).Err()
}

// ---------------------------------------------------------------------------
// Strike escalation
// ---------------------------------------------------------------------------

// escalationDuration returns the suspension duration for a given strike count.
func escalationDuration(strikes int) time.Duration {
	switch {
	case strikes <= AutoBanThreshold:
		return Ban15Min
	case strikes == AutoBanThreshold+1:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// StrikeCount returns the current strike counter for a connection code.
// Returns 0 if no strikes are recorded or the counter expired.
func (s *Store) StrikeCount(ctx context.Context, code string) (int, error) {
	val, err := s.client.Get(ctx, StrikesPrefix+code).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Strike records one moderation strike against a connection code and checks
// whether the auto-suspension threshold has been reached. The strike counter
// has a 24h TTL set on the first strike, so the window does not slide.
//
// When the threshold is met or exceeded a suspension is applied whose
// duration escalates with the strike count:
//
//	3rd strike  -> 15 minutes
//	4th strike  -> 1 hour
//	5th+ strike -> 24 hours
//
// Returns (banned, duration, error).
func (s *Store) Strike(ctx context.Context, code string, reason string) (bool, time.Duration, error) {
	key := StrikesPrefix + code

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ban: strike incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, StrikesTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("ban: strike expire: %w", err)
		}
	}

	if count >= AutoBanThreshold {
		duration := escalationDuration(int(count))
		if err := s.Ban(ctx, code, duration, reason); err != nil {
			return false, 0, fmt.Errorf("ban: strike ban: %w", err)
		}
		return true, duration, nil
	}
	return false, 0, nil
}
