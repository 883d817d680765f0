package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classroll/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendDeliversAndRetries(t *testing.T) {
	m := New(NewMemoryBackend())
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := m.Publish(ctx, "notifications", []byte(`{"type":"approval"}`), map[string]string{"type": "approval"})
	require.NoError(t, err)

	calls := 0
	done := make(chan Message, 1)
	go func() {
		_ = m.Subscribe(ctx, "notifications", func(ctx context.Context, msg Message) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			done <- msg
			return nil
		})
	}()

	select {
	case msg := <-done:
		assert.Equal(t, `{"type":"approval"}`, string(msg.Data))
		assert.Equal(t, "approval", msg.Attributes["type"])
		assert.NotEmpty(t, msg.ID)
	case <-ctx.Done():
		t.Fatal("message was not redelivered")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(context.Background(), config.MQConfig{Backend: "memory"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestAttemptCount(t *testing.T) {
	assert.Equal(t, 0, attemptCount(nil))
	assert.Equal(t, 3, attemptCount(amqp.Table{attemptsHeader: int32(3)}))
	assert.Equal(t, 4, attemptCount(amqp.Table{attemptsHeader: int64(4)}))
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 5 * time.Second},
		{attempts: 1, want: 5 * time.Second},
		{attempts: 2, want: 10 * time.Second},
		{attempts: 4, want: 40 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryBackoff(defaultRetryDelay, tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryQueueDeadLettersToWorkQueue(t *testing.T) {
	args := retryQueueArgs("notifications")
	assert.Equal(t, "", args["x-dead-letter-exchange"])
	assert.Equal(t, "notifications", args["x-dead-letter-routing-key"])
}
