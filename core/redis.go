package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginAttemptKeyPrefix = "auth:login_attempts:"

	metricLoginSuccess = "auth:metrics:login_success"
	metricLoginFailure = "auth:metrics:login_failure"
	metricTokensIssued = "auth:metrics:tokens_issued"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// LoginLimiter applies a fixed-window counter per username so that
// credential stuffing is slowed down before bcrypt is even consulted.
type LoginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLoginLimiter(client *redis.Client, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt for username and reports whether it is within
// the window limit. INCR and EXPIRE run atomically so the window cannot be
// extended by concurrent attempts.
func (l *LoginLimiter) Allow(ctx context.Context, username string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}
	script := redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)
	key := loginAttemptKeyPrefix + username
	res, err := script.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, errors.New("unexpected limiter response type")
	}
	return n <= int64(l.limit), nil
}

// AuthMetricsSnapshot holds the cumulative authentication counters.
type AuthMetricsSnapshot struct {
	LoginSuccess int64 `json:"login_success"`
	LoginFailure int64 `json:"login_failure"`
	TokensIssued int64 `json:"tokens_issued"`
}

// AuthMetrics records authentication outcomes in redis. Recording is
// best-effort; a metrics failure never fails the request.
type AuthMetrics struct {
	client *redis.Client
}

func NewAuthMetrics(client *redis.Client) *AuthMetrics {
	return &AuthMetrics{client: client}
}

func (m *AuthMetrics) RecordLoginSuccess(ctx context.Context) {
	m.incr(ctx, metricLoginSuccess)
	m.incr(ctx, metricTokensIssued)
}

func (m *AuthMetrics) RecordLoginFailure(ctx context.Context) {
	m.incr(ctx, metricLoginFailure)
}

func (m *AuthMetrics) RecordRegistration(ctx context.Context) {
	m.incr(ctx, metricTokensIssued)
}

func (m *AuthMetrics) incr(ctx context.Context, key string) {
	if m == nil || m.client == nil {
		return
	}
	_ = m.client.Incr(ctx, key).Err()
}

// Snapshot reads the current counter values. Missing keys read as zero.
func (m *AuthMetrics) Snapshot(ctx context.Context) (AuthMetricsSnapshot, error) {
	var s AuthMetricsSnapshot
	if m == nil || m.client == nil {
		return s, nil
	}
	vals, err := m.client.MGet(ctx, metricLoginSuccess, metricLoginFailure, metricTokensIssued).Result()
	if err != nil {
		return s, err
	}
	counters := []*int64{&s.LoginSuccess, &s.LoginFailure, &s.TokensIssued}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return s, fmt.Errorf("unexpected metric value type %T", v)
		}
		var n int64
		if _, err := fmt.Sscanf(str, "%d", &n); err != nil {
			return s, err
		}
		*counters[i] = n
	}
	return s, nil
}
