package notify

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/util"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

//JobNotification the message published when a job execution ends
type JobNotification struct {
	JobName        string    `json:"job_name"`
	JobInstanceId  int64     `json:"job_instance_id"`
	JobExecutionId int64     `json:"job_execution_id"`
	RunId          int64     `json:"run_id,omitempty"`
	Status         string    `json:"status"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ReadCount      int64     `json:"read_count"`
	WriteCount     int64     `json:"write_count"`
	FilterCount    int64     `json:"filter_count"`
	Error          string    `json:"error,omitempty"`
}

//PubSubJobListener publishes a JobNotification to a Pub/Sub topic after every job execution.
//Publish failures are logged and never change the job status.
type PubSubJobListener struct {
	topic   *pubsub.Topic
	timeout time.Duration
}

func NewPubSubJobListener(topic *pubsub.Topic) *PubSubJobListener {
	if topic == nil {
		panic("pubsub topic must not be nil")
	}
	return &PubSubJobListener{topic: topic, timeout: 30 * time.Second}
}

//OpenTopic connects to projectID and returns topicID, creating it when it does not exist
func OpenTopic(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*pubsub.Client, *pubsub.Topic, error) {
	if projectID == "" || topicID == "" {
		return nil, nil, errors.New("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create pubsub client of project:%v", projectID)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, nil, errors.Wrapf(err, "check topic:%v exists", topicID)
	}
	if !ok {
		if topic, err = client.CreateTopic(ctx, topicID); err != nil {
			client.Close()
			return nil, nil, errors.Wrapf(err, "create topic:%v", topicID)
		}
	}
	return client, topic, nil
}

func (l *PubSubJobListener) BeforeJob(execution *batchcsv.JobExecution) batchcsv.BatchError {
	return nil
}

func (l *PubSubJobListener) AfterJob(execution *batchcsv.JobExecution) batchcsv.BatchError {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	n := newNotification(execution)
	data, err := json.Marshal(n)
	if err != nil {
		batchcsv.GetLogger().Error(ctx, "marshal job notification failed, jobExecutionId:%v, err:%v", execution.JobExecutionId, err)
		return nil
	}
	result := l.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_name": n.JobName,
			"status":   n.Status,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		batchcsv.GetLogger().Warn(ctx, "publish job notification failed, jobName:%v, jobExecutionId:%v, err:%v", n.JobName, n.JobExecutionId, err)
		return nil
	}
	batchcsv.GetLogger().Info(ctx, "job notification published, jobName:%v, jobExecutionId:%v, messageId:%v", n.JobName, n.JobExecutionId, id)
	return nil
}

func newNotification(execution *batchcsv.JobExecution) *JobNotification {
	n := &JobNotification{
		JobName:        execution.JobName,
		JobInstanceId:  execution.JobInstanceId,
		JobExecutionId: execution.JobExecutionId,
		Status:         string(execution.JobStatus),
		StartTime:      execution.StartTime,
		EndTime:        execution.EndTime,
	}
	if v, ok := execution.JobParams[batchcsv.RunIdKey]; ok {
		n.RunId, _ = util.ToInt64(v)
	}
	for _, se := range execution.StepExecutions {
		n.ReadCount += se.ReadCount
		n.WriteCount += se.WriteCount
		n.FilterCount += se.FilterCount
	}
	if execution.FailError != nil {
		n.Error = execution.FailError.Error()
	}
	return n
}
