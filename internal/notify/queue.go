package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classroll/apiserver/internal/mq"
)

// Job types.
const (
	JobApproval = "approval"
	JobContact  = "contact"
)

// Job asks the worker to deliver one notification.
type Job struct {
	Type      string `json:"type"`
	UserID    int    `json:"user_id,omitempty"`
	ContactID int    `json:"contact_id,omitempty"`
}

// Queue carries notification jobs over a message queue channel.
type Queue struct {
	mq      *mq.MQ
	channel string
}

func NewQueue(m *mq.MQ, channel string) *Queue {
	return &Queue{mq: m, channel: channel}
}

// Publish enqueues job.
func (q *Queue) Publish(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.mq.Publish(ctx, q.channel, data, map[string]string{"type": job.Type})
	return err
}

// Consume delivers jobs to handle until ctx is done. A handler error
// requeues the message.
func (q *Queue) Consume(ctx context.Context, handle func(context.Context, Job) error) error {
	return q.mq.Subscribe(ctx, q.channel, func(ctx context.Context, msg mq.Message) error {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			// Malformed jobs are dropped.
			return nil
		}
		if err := handle(ctx, job); err != nil {
			return fmt.Errorf("job %s: %w", job.Type, err)
		}
		return nil
	})
}
