package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS and REDIS_ADDRESS to run redis tests")
	}
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	assert.Equal(t, nil, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisJobLocker(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(t)
	locker := NewRedisJobLocker(rdb, 200*time.Millisecond)
	jobName := "lockTest-" + time.Now().Format("150405.000000")

	lk, err := locker.Obtain(ctx, jobName)
	assert.Equal(t, nil, err)
	_, err = locker.Obtain(ctx, jobName)
	assert.T(t, errors.Is(err, ErrJobLocked), err)

	time.Sleep(500 * time.Millisecond)
	_, err = locker.Obtain(ctx, jobName)
	assert.T(t, errors.Is(err, ErrJobLocked), "refreshed lock must still be held")

	assert.Equal(t, nil, lk.Release(ctx))
	assert.Equal(t, nil, lk.Release(ctx))
	lk2, err := locker.Obtain(ctx, jobName)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, lk2.Release(ctx))
}

func TestNewRedisJobLocker_DefaultTTL(t *testing.T) {
	locker := NewRedisJobLocker(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0)
	assert.Equal(t, DefaultTTL, locker.ttl)
	assert.Equal(t, "batchcsv:lock:invoiceJob", locker.key("invoiceJob"))
}
