package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/bmizerany/assert"
	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/status"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func fakePubSub(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	assert.Equal(t, nil, err)
	client, topic, err := OpenTopic(ctx, "test-project", "batch-jobs", option.WithGRPCConn(conn))
	assert.Equal(t, nil, err)
	t.Cleanup(func() {
		topic.Stop()
		client.Close()
	})
	return srv, topic
}

func TestPubSubJobListener_AfterJob(t *testing.T) {
	srv, topic := fakePubSub(t)
	l := NewPubSubJobListener(topic)
	start := time.Date(2021, 12, 2, 10, 0, 0, 0, time.UTC)
	execution := &batchcsv.JobExecution{
		JobExecutionId: 7,
		JobInstanceId:  3,
		JobName:        "invoiceJob",
		JobParams:      map[string]interface{}{batchcsv.RunIdKey: float64(2)},
		JobStatus:      status.COMPLETED,
		StartTime:      start,
		EndTime:        start.Add(time.Minute),
		StepExecutions: []*batchcsv.StepExecution{{ReadCount: 5, WriteCount: 4, FilterCount: 1}},
	}
	assert.Equal(t, nil, l.BeforeJob(execution))
	assert.Equal(t, nil, l.AfterJob(execution))

	msgs := srv.Messages()
	assert.Equal(t, 1, len(msgs))
	assert.Equal(t, "invoiceJob", msgs[0].Attributes["job_name"])
	assert.Equal(t, "COMPLETED", msgs[0].Attributes["status"])
	var n JobNotification
	assert.Equal(t, nil, json.Unmarshal(msgs[0].Data, &n))
	assert.Equal(t, int64(7), n.JobExecutionId)
	assert.Equal(t, int64(2), n.RunId)
	assert.Equal(t, int64(5), n.ReadCount)
	assert.Equal(t, int64(4), n.WriteCount)
	assert.Equal(t, int64(1), n.FilterCount)
	assert.Equal(t, "", n.Error)
}

func TestPubSubJobListener_FailedJob(t *testing.T) {
	srv, topic := fakePubSub(t)
	l := NewPubSubJobListener(topic)
	execution := &batchcsv.JobExecution{
		JobExecutionId: 8,
		JobName:        "invoiceJob",
		JobStatus:      status.FAILED,
		FailError:      batchcsv.NewBatchError(batchcsv.ErrCodeGeneral, "read record from file:invoices.csv err"),
	}
	assert.Equal(t, nil, l.AfterJob(execution))
	msgs := srv.Messages()
	assert.Equal(t, 1, len(msgs))
	var n JobNotification
	assert.Equal(t, nil, json.Unmarshal(msgs[0].Data, &n))
	assert.Equal(t, "FAILED", n.Status)
	assert.Equal(t, "batch err, code:general, message:read record from file:invoices.csv err, cause:read record from file:invoices.csv err", n.Error)
}

func TestOpenTopic_Validation(t *testing.T) {
	_, _, err := OpenTopic(context.Background(), "", "topic")
	assert.NotEqual(t, nil, err)
}
