package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/config"
)

// Redis holds the client backing the session store.
type Redis struct {
	Client *redis.Client
	addr   string
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeoutSec > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSec) * time.Second
	}
	return opts
}

// NewRedis connects to Redis. When required is set an unreachable server is
// an error; otherwise it is logged and the handle is returned anyway.
func NewRedis(ctx context.Context, cfg config.RedisConfig, required bool, logger *zap.Logger) (*Redis, error) {
	r := &Redis{Client: redis.NewClient(redisOptions(cfg)), addr: cfg.Addr}
	log := logger.With(zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	if err := r.Ping(ctx); err != nil {
		if required {
			r.Close()
			return nil, err
		}
		log.Warn("unable to reach redis", zap.Error(err))
		return r, nil
	}
	log.Info("connected to redis")
	return r, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", r.addr, err)
	}
	return nil
}
