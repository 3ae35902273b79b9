package batchcsv

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/chararch/batchcsv/util"
	"github.com/pkg/errors"
)

//BatchContext contains properties during a job or step execution, safe for concurrent use
type BatchContext struct {
	mu  sync.RWMutex
	kvs map[string]interface{}
}

//NewBatchContext new instance
func NewBatchContext() *BatchContext {
	return &BatchContext{
		kvs: map[string]interface{}{},
	}
}

func (ctx *BatchContext) Put(key string, value interface{}) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.kvs[key] = value
}

func (ctx *BatchContext) Exists(key string) bool {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.kvs[key] != nil
}

func (ctx *BatchContext) Remove(key string) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	delete(ctx.kvs, key)
}

func (ctx *BatchContext) Get(key string, def ...interface{}) interface{} {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	val := ctx.kvs[key]
	if val == nil && len(def) > 0 {
		val = def[0]
	}
	return val
}

func (ctx *BatchContext) GetInt64(key string, def ...int64) (int64, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	r, err := util.ToInt64(v)
	if err != nil {
		return 0, errors.Errorf("value of %v is nil or not int64: %v", key, v)
	}
	return r, nil
}

func (ctx *BatchContext) GetInt(key string, def ...int) (int, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	r, err := util.ToInt64(v)
	if err != nil {
		return 0, errors.Errorf("value of %v is nil or not int: %v", key, v)
	}
	return int(r), nil
}

func (ctx *BatchContext) GetString(key string, def ...string) (string, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	if r, ok := v.(string); ok {
		return r, nil
	}
	return "", errors.Errorf("value of %v is nil or not string: %v", key, v)
}

func (ctx *BatchContext) DeepCopy() *BatchContext {
	result := NewBatchContext()
	result.Merge(ctx)
	return result
}

func (ctx *BatchContext) Merge(other *BatchContext) {
	if other == nil || other == ctx {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for key, value := range other.kvs {
		ctx.kvs[key] = value
	}
}

func (ctx *BatchContext) MarshalJSON() ([]byte, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return json.Marshal(ctx.kvs)
}

func (ctx *BatchContext) UnmarshalJSON(b []byte) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.kvs == nil {
		ctx.kvs = map[string]interface{}{}
	}
	return json.Unmarshal(b, &ctx.kvs)
}

//ChunkContext state shared by the reader, processor and writer while one chunk is processed
type ChunkContext struct {
	StepExecution *StepExecution
	Tx            interface{}
	End           bool
	ctx           context.Context
}

//Context the context of the running step, never nil
func (c *ChunkContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
