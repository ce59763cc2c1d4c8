package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLoginLimiterBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLoginLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("Allow #%d error: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("attempt %d blocked before limit", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if ok {
		t.Fatal("attempt over limit was allowed")
	}

	// Another username has its own window.
	if ok, _ := limiter.Allow(ctx, "bob"); !ok {
		t.Fatal("unrelated username blocked")
	}

	// The window resets after it elapses.
	mr.FastForward(2 * time.Minute)
	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("attempt after window expiry blocked")
	}
}

func TestLoginLimiterDisabled(t *testing.T) {
	var limiter *LoginLimiter
	if ok, err := limiter.Allow(context.Background(), "alice"); err != nil || !ok {
		t.Fatalf("nil limiter should allow, got ok=%v err=%v", ok, err)
	}

	limiter = NewLoginLimiter(newTestRedis(t), 0, time.Minute)
	if ok, err := limiter.Allow(context.Background(), "alice"); err != nil || !ok {
		t.Fatalf("zero-limit limiter should allow, got ok=%v err=%v", ok, err)
	}
}

func TestAuthMetricsSnapshot(t *testing.T) {
	metrics := NewAuthMetrics(newTestRedis(t))
	ctx := context.Background()

	metrics.RecordLoginSuccess(ctx)
	metrics.RecordLoginSuccess(ctx)
	metrics.RecordLoginFailure(ctx)
	metrics.RecordRegistration(ctx)

	snap, err := metrics.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if snap.LoginSuccess != 2 {
		t.Errorf("LoginSuccess = %d, want 2", snap.LoginSuccess)
	}
	if snap.LoginFailure != 1 {
		t.Errorf("LoginFailure = %d, want 1", snap.LoginFailure)
	}
	// Two successful logins plus one registration issued three tokens.
	if snap.TokensIssued != 3 {
		t.Errorf("TokensIssued = %d, want 3", snap.TokensIssued)
	}
}

func TestAuthMetricsNilSafe(t *testing.T) {
	var metrics *AuthMetrics
	metrics.RecordLoginSuccess(context.Background())
	snap, err := metrics.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("nil metrics Snapshot error: %v", err)
	}
	if snap != (AuthMetricsSnapshot{}) {
		t.Errorf("nil metrics snapshot = %+v, want zero", snap)
	}
}

func TestAuthMetricsEmptySnapshot(t *testing.T) {
	metrics := NewAuthMetrics(newTestRedis(t))
	snap, err := metrics.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if snap != (AuthMetricsSnapshot{}) {
		t.Errorf("snapshot = %+v, want zero counters", snap)
	}
}
