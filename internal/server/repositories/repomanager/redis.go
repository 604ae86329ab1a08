package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/accounts"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "catalogauth"

func openRedis(ctx context.Context, addr string, db int) (*Manager, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Manager{
		accounts: accounts.NewRedisRepository(rdb, redisKeyPrefix),
		closers:  []func() error{rdb.Close},
	}, nil
}
