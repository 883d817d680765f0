package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	attemptsHeader     = "x-classroll-attempts"
	defaultMaxAttempts = 5
	defaultRetryDelay  = 5 * time.Second
	retryQueueSuffix   = ".retry"
)

// RabbitMQClient wraps a RabbitMQ connection/channel pair.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
	maxAttempts     int
	retryDelay      time.Duration
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		maxAttempts:     defaultMaxAttempts,
		retryDelay:      defaultRetryDelay,
	}, nil
}

// Publish sends a message to the named queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if _, err := r.declareQueue(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	messageID := uuid.NewString()
	if err := r.publish(ctx, channel, messageID, data, headers, ""); err != nil {
		return "", err
	}
	return messageID, nil
}

func (r *RabbitMQClient) publish(ctx context.Context, queue, messageID string, data []byte, headers amqp.Table, expiration string) error {
	mode := amqp.Transient
	if r.queueDurable {
		mode = amqp.Persistent
	}
	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    messageID,
		Expiration:   expiration,
		Headers:      headers,
		Body:         data,
	})
}

// Subscribe consumes messages from the named queue. A message whose handler
// fails is parked on a retry queue until its backoff expires, then
// dead-lettered back onto the named queue. It is dropped once its attempt
// counter reaches the attempt limit.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if _, err := r.declareQueue(channel); err != nil {
		return err
	}
	if _, err := r.declareRetryQueue(channel); err != nil {
		return err
	}

	consumerTag := "worker-" + uuid.NewString()
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				r.retry(ctx, channel, delivery)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) retry(ctx context.Context, queue string, delivery amqp.Delivery) {
	attempts := attemptCount(delivery.Headers) + 1
	if attempts >= r.maxAttempts {
		_ = delivery.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for key, value := range delivery.Headers {
		headers[key] = value
	}
	headers[attemptsHeader] = int32(attempts)
	expiration := strconv.FormatInt(retryBackoff(r.retryDelay, attempts).Milliseconds(), 10)
	if err := r.publish(ctx, queue+retryQueueSuffix, delivery.MessageId, delivery.Body, headers, expiration); err != nil {
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// retryBackoff doubles base for every attempt after the first.
func retryBackoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return base << (attempts - 1)
}

func attemptCount(headers amqp.Table) int {
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		name,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		nil,
	)
}

// declareRetryQueue declares the queue failed messages wait on. It has no
// consumers; expired messages are dead-lettered back onto queue.
func (r *RabbitMQClient) declareRetryQueue(queue string) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		queue+retryQueueSuffix,
		r.queueDurable,
		false,
		false,
		false,
		retryQueueArgs(queue),
	)
}

func retryQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
