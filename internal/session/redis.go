package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores sessions as plain string values under prefix+key, without
// expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OpenRedis connects and pings the server once.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedis(client, opts.Prefix), nil
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Load(ctx context.Context, key string) (UserSession, error) {
	buf, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return UserSession{}, nil
		}
		return UserSession{}, fmt.Errorf("session read: %w", err)
	}
	return decode(buf)
}

func (r *Redis) Save(ctx context.Context, key string, s UserSession) error {
	buf, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, buf, 0).Err(); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
