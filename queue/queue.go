package queue

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/siherrmann/archivist/helper"
)

const (
	IndexQueue  = "index_queue"
	DeleteQueue = "delete_queue"
)

// Queues lists the queues consumed by the ingestion worker.
var Queues = []string{IndexQueue, DeleteQueue}

// retryDelay is how long a failed message waits in the retry queue.
const retryDelay = 10 * time.Second

// Channel is the subset of *amqp091.Channel used by the worker.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, helper.NewError("amqp dial", err)
	}
	return conn, nil
}

// SetupQueues declares every queue with its dead letter and retry queue.
// Retry queues dead-letter back into their source queue after retryDelay.
func SetupQueues(ch Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return helper.NewError("declare "+name, err)
		}

		_, err = ch.QueueDeclare(
			name+"_dlq",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return helper.NewError("declare "+name+"_dlq", err)
		}

		_, err = ch.QueueDeclare(
			name+"_retry",
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return helper.NewError("declare "+name+"_retry", err)
		}
	}
	return nil
}

// Publish sends a persistent message to a queue on the default exchange.
func Publish(ctx context.Context, ch Channel, queueName string, contentType string, body []byte) error {
	err := ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return helper.NewError("publish "+queueName, err)
	}
	return nil
}
