package lock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/chararch/batchcsv"
	"github.com/pkg/errors"
)

//DefaultTTL lifetime of a job lock between two refreshes
const DefaultTTL = time.Minute

//ErrJobLocked another process holds the lock of the job
var ErrJobLocked = errors.New("job is locked by another execution")

//RedisJobLocker a batchcsv.JobLocker holding one redis lock per job name
type RedisJobLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
}

//NewRedisJobLocker create a locker on rdb, usually a *redis.Client. The lock is refreshed every ttl/2 until released.
func NewRedisJobLocker(rdb redislock.RedisClient, ttl time.Duration) *RedisJobLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisJobLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "batchcsv:lock:",
	}
}

func (l *RedisJobLocker) key(jobName string) string {
	return l.prefix + jobName
}

func (l *RedisJobLocker) Obtain(ctx context.Context, jobName string) (batchcsv.JobLock, error) {
	lk, err := l.client.Obtain(ctx, l.key(jobName), l.ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, errors.Wrapf(ErrJobLocked, "obtain lock of job:%v", jobName)
	} else if err != nil {
		return nil, errors.Wrapf(err, "obtain lock of job:%v", jobName)
	}
	jl := &jobLock{
		lock:    lk,
		jobName: jobName,
		ttl:     l.ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go jl.keepAlive(context.WithoutCancel(ctx))
	return jl, nil
}

type jobLock struct {
	lock    *redislock.Lock
	jobName string
	ttl     time.Duration
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (jl *jobLock) keepAlive(ctx context.Context) {
	defer close(jl.done)
	ticker := time.NewTicker(jl.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-jl.stop:
			return
		case <-ticker.C:
			if err := jl.lock.Refresh(ctx, jl.ttl, nil); err != nil {
				batchcsv.GetLogger().Error(ctx, "refresh job lock failed, jobName:%v, err:%v", jl.jobName, err)
				return
			}
		}
	}
}

func (jl *jobLock) Release(ctx context.Context) error {
	var err error
	jl.once.Do(func() {
		close(jl.stop)
		<-jl.done
		err = jl.lock.Release(ctx)
		if err == redislock.ErrLockNotHeld {
			err = errors.Wrapf(err, "lock of job:%v expired before release", jl.jobName)
		}
	})
	return err
}
