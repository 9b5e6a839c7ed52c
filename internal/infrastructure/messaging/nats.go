package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

// NATSConsumer imports consignments published on a subject. Members of the
// same queue group share the stream. Requests with a reply subject get the
// outcome back.
type NATSConsumer struct {
	conn    *nats.Conn
	subject string
	queue   string
	handler *ImportHandler
}

func NewNATSConsumer(conn *nats.Conn, subject, queue string, handler *ImportHandler) *NATSConsumer {
	return &NATSConsumer{conn: conn, subject: subject, queue: queue, handler: handler}
}

// DialNATS connects with reconnects enabled until ctx ends.
func DialNATS(ctx context.Context, url string) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("nats.url is required")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "messaging.nats"))
	conn, err := nats.Connect(url,
		nats.Name("pharmatrace"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.String("err", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	return conn, nil
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (c *NATSConsumer) Run(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("nats connection is required")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "messaging.nats"),
		slog.String("subject", c.subject),
		slog.String("queue", c.queue),
	)

	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		c.handleMsg(ctx, msg)
	})
	if err != nil {
		return errs.Wrapf(err, "subscribe %s", c.subject)
	}
	logging.Info(ctx, "waiting for consignments")

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return errs.Wrap(err, "drain nats subscription")
	}
	return nil
}

type natsReply struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (c *NATSConsumer) handleMsg(ctx context.Context, msg *nats.Msg) Outcome {
	outcome, err := c.handler.Handle(ctx, "nats", msg.Data)
	if msg.Reply == "" {
		return outcome
	}

	reply := natsReply{Outcome: outcome.String()}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	if err := msg.Respond(body); err != nil {
		logging.Warn(ctx, "nats reply failed", slog.String("err", err.Error()))
	}
	return outcome
}
