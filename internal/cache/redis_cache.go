package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cookiecraze/backend/internal/domain"
)

const (
	cartKeyPrefix   = "cookiecraze:cart:"
	orderVersionKey = "cookiecraze:orders:version"
)

// Redis backs the report cache, session carts and the new-order signal with
// a single client.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.SalesReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *Redis) SetReport(ctx context.Context, key string, value *domain.SalesReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *Redis) LoadCart(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, cartKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (c *Redis) SaveCart(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	return c.client.Set(ctx, cartKeyPrefix+key, raw, ttl).Err()
}

func (c *Redis) DeleteCart(ctx context.Context, key string) error {
	return c.client.Del(ctx, cartKeyPrefix+key).Err()
}

func (c *Redis) SignalVersion(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, orderVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *Redis) BumpSignal(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, orderVersionKey).Result()
}
