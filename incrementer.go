package batchcsv

import "github.com/chararch/batchcsv/util"

//RunIdKey job parameter holding the run number of an incremented job
const RunIdKey = "run.id"

//JobParametersIncrementer derives the parameters of a new job instance from the parameters of the last one
type JobParametersIncrementer interface {
	GetNext(last map[string]interface{}, params map[string]interface{}) map[string]interface{}
}

//RunIdIncrementer sets run.id to the last instance's run.id plus one, starting at 1
type RunIdIncrementer struct{}

func (RunIdIncrementer) GetNext(last map[string]interface{}, params map[string]interface{}) map[string]interface{} {
	next := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		next[k] = v
	}
	var runId int64
	if v, ok := last[RunIdKey]; ok {
		if id, err := util.ToInt64(v); err == nil {
			runId = id
		}
	}
	next[RunIdKey] = runId + 1
	return next
}
