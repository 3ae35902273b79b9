package batchcsv

import (
	"context"
	"testing"

	"github.com/bmizerany/assert"
)

func TestTaskPool_Submit(t *testing.T) {
	ctx := context.Background()
	pool := newTaskPool(2)
	fu := pool.Submit(ctx, func() (interface{}, error) {
		return "ok", nil
	})
	val, err := fu.Get()
	assert.Equal(t, "ok", val)
	assert.Equal(t, nil, err)

	fu = pool.Submit(ctx, func() (interface{}, error) {
		var m []string
		return m[0], nil
	})
	val, err = fu.Get()
	assert.Equal(t, nil, val)
	assert.NotEqual(t, nil, err)

	pool.Release()
	fu = pool.Submit(ctx, func() (interface{}, error) {
		return "ok", nil
	})
	val, err = fu.Get()
	assert.Equal(t, nil, val)
	assert.NotEqual(t, nil, err)
}

func TestTaskPool_TypedNilError(t *testing.T) {
	pool := newTaskPool(1)
	defer pool.Release()
	fu := pool.Submit(context.Background(), func() (interface{}, error) {
		var be BatchError
		return 1, be
	})
	val, err := fu.Get()
	assert.Equal(t, 1, val)
	assert.Equal(t, nil, err)
}
