package batchcsv

import (
	"context"
	"runtime/debug"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

//taskPool runs job launches and concurrent item processing on a bounded ants pool
type taskPool struct {
	pool *ants.Pool
}

func newTaskPool(size int) *taskPool {
	pool, err := ants.NewPool(size)
	if err != nil {
		panic(errors.Wrapf(err, "create task pool of size:%v", size))
	}
	return &taskPool{pool: pool}
}

// Future result of a pooled task
type Future interface {
	//Get blocks until the task finished
	Get() (interface{}, error)
}

type taskResult struct {
	val interface{}
	err error
}

type future <-chan taskResult

func (f future) Get() (interface{}, error) {
	r := <-f
	return r.val, r.err
}

func done(val interface{}, err error) future {
	ch := make(chan taskResult, 1)
	ch <- taskResult{val: val, err: err}
	return ch
}

//Submit runs task on the pool, a panic in task is returned as the Future's error
func (p *taskPool) Submit(ctx context.Context, task func() (interface{}, error)) Future {
	ch := make(chan taskResult, 1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "panic in pooled task, err:%v, stack:%v", r, string(debug.Stack()))
				ch <- taskResult{err: errors.Errorf("panic:%v", r)}
			}
		}()
		val, err := task()
		ch <- taskResult{val: val, err: err}
	})
	if err != nil {
		return done(nil, errors.Wrap(err, "submit task"))
	}
	return future(ch)
}

func (p *taskPool) Release() {
	p.pool.Release()
}

//SetMaxSize changes the pool capacity of a running pool
func (p *taskPool) SetMaxSize(size int) {
	p.pool.Tune(size)
}
