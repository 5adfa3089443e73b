package repository

import (
	"context"
	"fmt"
	"time"

	"collectivewatch/pkg/log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewRedis relay.redis.enabled 关闭时返回 nil
func NewRedis(conf *viper.Viper, logger *log.Logger) (*redis.Client, func(), error) {
	if !conf.GetBool("relay.redis.enabled") {
		return nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.GetString("data.redis.addr"),
		Password: conf.GetString("data.redis.password"),
		DB:       conf.GetInt("data.redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis error: %w", err)
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("close redis failed", zap.Error(err))
		}
	}
	return rdb, cleanup, nil
}
