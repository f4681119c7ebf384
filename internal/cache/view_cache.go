package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ViewCache es un caché JSON sobre Redis para vistas de solo lectura.
// Un ttl de 0 deja las claves sin expiración. Los fallos de escritura no son fatales.
type ViewCache[T any] struct {
	client redisKV
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *redis.Client, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if client == nil {
		return nil
	}
	return newViewCache[T](client, ttl, logger)
}

func newViewCache[T any](client redisKV, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewCache[T]{client: client, ttl: ttl, logger: logger}
}

// Get devuelve (nil, false) ante cualquier fallo. Una entrada que no se puede
// deserializar se borra para que la próxima lectura la repueble.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.logger.Warn("view cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return nil, false
	}
	return &v, true
}

func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("view cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("view cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
