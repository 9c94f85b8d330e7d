package keylock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Locker = (*Redis)(nil)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the Redis locker.
type RedisConfig struct {
	// Prefix is prepended to every key.
	Prefix string
	// TTL bounds how long a crashed holder can keep the lock.
	TTL time.Duration
	// Wait bounds how long Lock retries before ErrTimeout.
	Wait time.Duration
	// Retry is the polling interval while the lock is taken.
	Retry time.Duration
}

// Redis is a distributed Locker backed by a single Redis instance.
type Redis struct {
	client redis.Cmdable
	cfg    RedisConfig
}

// NewRedis creates a Redis locker. Zero config values get defaults of
// 30s TTL, 5s wait and 50ms retry.
func NewRedis(client redis.Cmdable, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 50 * time.Millisecond
	}
	return &Redis{client: client, cfg: cfg}
}

// Lock acquires the lock for key, polling until it is free.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	key = r.cfg.Prefix + key
	token := uuid.New().String()

	deadline := time.NewTimer(r.cfg.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.cfg.Retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "acquire %q", key)
		}
		if ok {
			return r.unlockFunc(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlockFunc(key, token string) Unlock {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release must run even when the request context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}
}
