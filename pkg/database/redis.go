package database

import (
	"context"
	"net"
	"strconv"
	"time"

	"skillcert_backend/internal/config"
	"skillcert_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisDialTimeout = 3 * time.Second

// InitRedis returns nil, nil when no host is configured. Redis only carries the
// evaluation notifications and the certification cache, so callers run without it.
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
		// one long-lived subscription per open event stream plus request traffic
		PoolSize:     32,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	logger.Log.Info("redis connected", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
