package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// ErrMiss ключ отсутствует.
var ErrMiss = errors.New("cache: miss")

// unlockScript удаляет ключ только если он всё ещё наш.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCache кэш и блокировки поверх Redis.
type RedisCache struct {
	client redis.UniversalClient
}

var _ domain.RunLocker = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Dial подключается к Redis по адресу и проверяет соединение.
func Dial(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client), nil
}

// TryLock берёт блокировку через SET NX с уникальным токеном.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", key, start, err)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "cache", start, err)
	return err
}

// Get возвращает значение или ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "cache", start, nil)
		return nil, ErrMiss
	}
	metrics.ObserveNetworkRequest("redis", "get", "cache", start, err)
	return val, err
}

// Close закрывает клиента.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
