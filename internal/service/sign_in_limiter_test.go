package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisSignInLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisSignInLimiter
		if !l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty email rejected", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{result: 1}, window: time.Minute, max: 3, prefix: "auth:signin:rl:"}
		if l.Allow(ctx, "   ") {
			t.Fatalf("expected empty email to be rejected")
		}
	})

	t.Run("normalizes key and forwards window", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisSignInLimiter{client: mock, window: 10 * time.Minute, max: 3, prefix: "auth:signin:rl:"}
		if !l.Allow(ctx, " User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "auth:signin:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 600 {
			t.Fatalf("expected window seconds=600, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisSignInAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{result: 4}, window: time.Minute, max: 3, prefix: "p:"}
		if l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{err: errors.New("redis down")}, window: time.Minute, max: 3, prefix: "p:"}
		if !l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestMemorySignInLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemorySignInLimiter(time.Minute, 2).(*memorySignInLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "a@b.c") || !l.Allow(ctx, "A@B.C ") {
		t.Fatalf("expected first two attempts to pass")
	}
	if l.Allow(ctx, "a@b.c") {
		t.Fatalf("expected third attempt inside the window to be denied")
	}
	if !l.Allow(ctx, "other@b.c") {
		t.Fatalf("expected independent keys")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow(ctx, "a@b.c") {
		t.Fatalf("expected attempts to expire after the window")
	}
}

func TestMemorySignInLimiter_ExpiredKeysAreDropped(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemorySignInLimiter(time.Minute, 2).(*memorySignInLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, email := range []string{"a@b.c", "b@b.c", "c@b.c"} {
		l.Allow(ctx, email)
	}
	if len(l.attempts) != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", len(l.attempts))
	}

	now = now.Add(2 * time.Minute)
	if !l.Allow(ctx, "d@b.c") {
		t.Fatalf("expected fresh key to pass")
	}
	if len(l.attempts) != 1 {
		t.Fatalf("expected stale keys to be dropped, got %d", len(l.attempts))
	}
	if _, ok := l.attempts["d@b.c"]; !ok {
		t.Fatalf("expected current key to be tracked")
	}
}
