package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

//ConnectRedis connects to addr and pings it, retrying with backoff up to attempts times
func ConnectRedis(ctx context.Context, addr string, attempts int, log *logrus.Logger) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "addr": addr}).Info("connected to redis")
			return rdb, nil
		}
		_ = rdb.Close()
		lastErr = err
		if attempt == attempts {
			break
		}
		sleep := backoff(attempt)
		log.WithFields(logrus.Fields{"attempt": attempt, "addr": addr, "retryIn": sleep.String()}).WithError(err).Warn("failed to connect redis")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("connect redis %s after %d attempts: %w", addr, attempts, lastErr)
}
