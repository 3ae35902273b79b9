package invoice

import (
	"context"

	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/status"
)

//InvoiceListener logs the start and the outcome of the invoice job
type InvoiceListener struct {
	//OnFinish optional callback receiving the finished execution
	OnFinish func(execution *batchcsv.JobExecution)
}

func (l *InvoiceListener) BeforeJob(execution *batchcsv.JobExecution) batchcsv.BatchError {
	batchcsv.GetLogger().Info(context.Background(), "invoice job started, jobName:%v, jobExecutionId:%v, jobParams:%v", execution.JobName, execution.JobExecutionId, execution.JobParams)
	return nil
}

func (l *InvoiceListener) AfterJob(execution *batchcsv.JobExecution) batchcsv.BatchError {
	var read, written, filtered int64
	for _, se := range execution.StepExecutions {
		read += se.ReadCount
		written += se.WriteCount
		filtered += se.FilterCount
	}
	if execution.JobStatus == status.COMPLETED {
		batchcsv.GetLogger().Info(context.Background(), "invoice job completed, jobExecutionId:%v, read:%v, written:%v, filtered:%v, elapsed:%v", execution.JobExecutionId, read, written, filtered, execution.EndTime.Sub(execution.StartTime))
	} else {
		batchcsv.GetLogger().Error(context.Background(), "invoice job ended with status:%v, jobExecutionId:%v, read:%v, written:%v, err:%v", execution.JobStatus, execution.JobExecutionId, read, written, execution.FailError)
	}
	if l.OnFinish != nil {
		l.OnFinish(execution)
	}
	return nil
}
