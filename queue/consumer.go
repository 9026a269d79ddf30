package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/siherrmann/archivist/core/relation"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// maxRetries is the number of retries before a message is dead-lettered.
const maxRetries = 10

// ErrMalformedMessage marks bodies that can never be processed. They skip the retry queue.
var ErrMalformedMessage = errors.New("malformed message")

// Indexer is the write path driven by queue messages.
type Indexer interface {
	IndexComponent(ctx context.Context, component *model.Component) (*relation.Resolution, error)
	DeleteComponent(ctx context.Context, id string) error
}

// DeleteMessage is the body of a delete_queue message. A bare id is accepted as well.
type DeleteMessage struct {
	ID string `json:"id"`
}

// Consumer feeds queued components into the indexer, one message at a time.
type Consumer struct {
	ch      Channel
	indexer Indexer
	logger  *slog.Logger
}

func NewConsumer(ch Channel, indexer Indexer, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		ch:      ch,
		indexer: indexer,
		logger:  logger,
	}
}

type queuedMessage struct {
	msg       amqp091.Delivery
	queueName string
}

// Run consumes all queues until ctx is done. Messages are processed serially.
func (c *Consumer) Run(ctx context.Context) error {
	if err := SetupQueues(c.ch, Queues); err != nil {
		return err
	}
	if err := c.ch.Qos(1, 0, true); err != nil {
		return helper.NewError("qos", err)
	}

	messages := make(chan queuedMessage)
	for _, queueName := range Queues {
		deliveries, err := c.ch.Consume(
			queueName,
			queueName+"_consumer",
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return helper.NewError("consume "+queueName, err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						c.logger.Info("Message channel closed", slog.String("queue", queueName))
						return
					}
					select {
					case messages <- queuedMessage{msg: msg, queueName: queueName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	c.logger.Info("Listening for messages", slog.Any("queues", Queues))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer")
			return nil
		case qm := <-messages:
			c.Deliver(ctx, qm.queueName, qm.msg)
		}
	}
}

// Deliver handles one delivery and settles it: ack on success, otherwise
// republish to the retry queue or, after maxRetries, to the dead letter queue.
func (c *Consumer) Deliver(ctx context.Context, queueName string, msg amqp091.Delivery) {
	start := time.Now()
	err := c.Handle(ctx, queueName, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ack message", slog.Any("err", ackErr))
		}
		c.logger.Info("Message processed", slog.String("queue", queueName), slog.Duration("duration", time.Since(start)))
		return
	}

	c.logger.Error("Error processing message", slog.String("queue", queueName), slog.Any("err", err))
	c.retry(ctx, queueName, msg, errors.Is(err, ErrMalformedMessage))
}

func (c *Consumer) retry(ctx context.Context, queueName string, msg amqp091.Delivery, deadLetter bool) {
	retries := retryCount(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)
	if deadLetter || retries >= maxRetries {
		target = queueName + "_dlq"
		headers["x-retries"] = int32(retries)
	}

	err := c.ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		c.logger.Error("Failed to republish message", slog.String("queue", target), slog.Any("err", err))
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Handle applies one message body to the indexer.
func (c *Consumer) Handle(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case IndexQueue:
		component := &model.Component{}
		if err := json.Unmarshal(body, component); err != nil {
			return helper.NewError("decode component", fmt.Errorf("%w: %v", ErrMalformedMessage, err))
		}
		if err := component.Prepare(); err != nil {
			return helper.NewError("prepare component", fmt.Errorf("%w: %v", ErrMalformedMessage, err))
		}
		resolution, err := c.indexer.IndexComponent(ctx, component)
		if err != nil {
			return err
		}
		c.logger.Debug(
			"Indexed queued component",
			slog.String("id", resolution.ComponentID),
			slog.Int("created", resolution.Created),
			slog.Int("rule_errors", len(resolution.Errors)),
		)
		return nil
	case DeleteQueue:
		id, err := deleteID(body)
		if err != nil {
			return err
		}
		err = c.indexer.DeleteComponent(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			return helper.NewError("delete component", fmt.Errorf("%w: %w", ErrMalformedMessage, err))
		}
		return err
	}
	return fmt.Errorf("%w: unknown queue %q", ErrMalformedMessage, queueName)
}

func deleteID(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	id := string(body)
	if bytes.HasPrefix(body, []byte("{")) {
		message := DeleteMessage{}
		if err := json.Unmarshal(body, &message); err != nil {
			return "", helper.NewError("decode delete message", fmt.Errorf("%w: %v", ErrMalformedMessage, err))
		}
		id = message.ID
	}
	id = strings.TrimSpace(id)
	if len(id) == 0 {
		return "", fmt.Errorf("%w: delete message has no id", ErrMalformedMessage)
	}
	return id, nil
}
