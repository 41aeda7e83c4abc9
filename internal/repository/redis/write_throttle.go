package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultThrottlePrefix = "tracker:throttle"

// WriteThrottleStore records mutation attempts per caller in sorted sets scored by
// timestamp, giving the HTTP layer a sliding window.
type WriteThrottleStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewWriteThrottleStore constructs a store. ttl bounds how long an idle key survives.
func NewWriteThrottleStore(client *red.Client, keyPrefix string, ttl time.Duration) *WriteThrottleStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultThrottlePrefix
	}
	return &WriteThrottleStore{client: client, prefix: prefix, ttl: ttl}
}

// ThrottleDecision is the outcome of one Hit.
type ThrottleDecision struct {
	Allowed bool
	// Count is the number of recorded attempts inside the window after the call.
	Count int
	// Reset is when the oldest recorded attempt leaves the window.
	Reset time.Time
}

// Hit drops attempts older than window, counts the rest and, when below limit, records
// the new attempt.
func (s *WriteThrottleStore) Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (ThrottleDecision, error) {
	if window <= 0 || limit <= 0 {
		return ThrottleDecision{}, errors.New("limit and window must be positive")
	}

	key := s.prefix + ":" + identifier
	floor := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+floor).Err(); err != nil {
		return ThrottleDecision{}, fmt.Errorf("redis trim window: %w", err)
	}

	oldest, err := s.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return ThrottleDecision{}, fmt.Errorf("redis oldest attempt: %w", err)
	}
	reset := now.Add(window)
	if len(oldest) > 0 {
		reset = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}

	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return ThrottleDecision{}, fmt.Errorf("redis count attempts: %w", err)
	}
	if int(count) >= limit {
		return ThrottleDecision{Allowed: false, Count: int(count), Reset: reset}, nil
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, red.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return ThrottleDecision{}, fmt.Errorf("redis record attempt: %w", err)
	}

	return ThrottleDecision{Allowed: true, Count: int(count) + 1, Reset: reset}, nil
}
