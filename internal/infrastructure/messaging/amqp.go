package messaging

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

// AMQPConsumer imports consignments from a durable queue with manual acks,
// one unacknowledged delivery at a time.
type AMQPConsumer struct {
	channel     *amqp.Channel
	queue       string
	consumerTag string
	handler     *ImportHandler
}

func NewAMQPConsumer(channel *amqp.Channel, queue string, handler *ImportHandler) *AMQPConsumer {
	return &AMQPConsumer{channel: channel, queue: queue, consumerTag: "pharmatrace-import", handler: handler}
}

// DialAMQP opens a connection and one channel on it.
func DialAMQP(url string) (*amqp.Connection, *amqp.Channel, error) {
	if url == "" {
		return nil, nil, errors.New("amqp.url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errs.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errs.Wrap(err, "open amqp channel")
	}
	return conn, ch, nil
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	if c.channel == nil {
		return errors.New("amqp channel is required")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "messaging.amqp"),
		slog.String("queue", c.queue),
	)

	if _, err := c.channel.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		return errs.Wrapf(err, "declare queue %s", c.queue)
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return errs.Wrap(err, "set amqp qos")
	}

	msgs, err := c.channel.Consume(
		c.queue,       // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return errs.Wrap(err, "register amqp consumer")
	}
	logging.Info(ctx, "waiting for consignments")

	for {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(c.consumerTag, false); err != nil {
				return errs.Wrap(err, "cancel amqp consumer")
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *AMQPConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) Outcome {
	ctx = logging.WithAttrs(ctx, slog.String("message_id", d.MessageId))
	outcome, _ := c.handler.Handle(ctx, "amqp", d.Body)

	var err error
	switch outcome {
	case OutcomeAck:
		err = d.Ack(false)
	case OutcomeReject:
		err = d.Reject(false)
	default:
		// Transient failures get one redelivery.
		err = d.Nack(false, !d.Redelivered)
	}
	if err != nil {
		logging.Error(ctx, "settle amqp delivery", slog.String("outcome", outcome.String()), slog.Any("err", errs.Loggable(err)))
	}
	return outcome
}
