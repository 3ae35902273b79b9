package status

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestBatchStatus_And(t *testing.T) {
	assert.Equal(t, COMPLETED.And(FAILED), FAILED)
	assert.Equal(t, FAILED.And(COMPLETED), FAILED)
	assert.Equal(t, STARTED.And(STOPPED), STOPPED)
	assert.Equal(t, BatchStatus("bogus").And(COMPLETED), COMPLETED)
}

func TestBatchStatus_IsRunning(t *testing.T) {
	assert.T(t, STARTED.IsRunning())
	assert.T(t, STOPPING.IsRunning())
	assert.T(t, !COMPLETED.IsRunning())
	assert.T(t, FAILED.IsRestartable())
	assert.T(t, !COMPLETED.IsRestartable())
}
