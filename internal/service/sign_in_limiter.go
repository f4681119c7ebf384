package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SignInLimiter limita los intentos de inicio de sesión por email normalizado.
type SignInLimiter interface {
	Allow(ctx context.Context, email string) bool
}

const redisSignInAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisSignInLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

func NewRedisSignInLimiter(client *redis.Client, window time.Duration, max int) SignInLimiter {
	if client == nil {
		return nil
	}
	window, max = limiterDefaults(window, max)
	return &redisSignInLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "auth:signin:rl:",
	}
}

// Allow falla abierto ante errores de Redis.
func (l *redisSignInLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := normalizeEmail(email)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisSignInAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

// memorySignInLimiter es una ventana deslizante en memoria para entornos sin Redis.
type memorySignInLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	attempts map[string][]time.Time
	swept    time.Time
	now      func() time.Time
}

func NewMemorySignInLimiter(window time.Duration, max int) SignInLimiter {
	window, max = limiterDefaults(window, max)
	return &memorySignInLimiter{
		window:   window,
		max:      max,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *memorySignInLimiter) Allow(_ context.Context, email string) bool {
	key := normalizeEmail(email)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.swept) >= l.window {
		l.sweep(cutoff)
		l.swept = now
	}
	kept := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	l.attempts[key] = kept
	return len(kept) <= l.max
}

// sweep descarta las claves cuyo último intento quedó fuera de la ventana.
func (l *memorySignInLimiter) sweep(cutoff time.Time) {
	for key, attempts := range l.attempts {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(cutoff) {
			delete(l.attempts, key)
		}
	}
}

func limiterDefaults(window time.Duration, max int) (time.Duration, int) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if max <= 0 {
		max = 5
	}
	return window, max
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
