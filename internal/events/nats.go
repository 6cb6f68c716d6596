// README: NATS-backed publisher and queue consumer for outbound events.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"shuttle/internal/logger"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, payload any) error {
	env, err := NewEnvelope(subject, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Handler processes one decoded envelope.
type Handler func(ctx context.Context, env Envelope) error

type Consumer struct {
	conn    *nats.Conn
	queue   string
	handler Handler
}

func NewConsumer(conn *nats.Conn, queue string, handler Handler) *Consumer {
	return &Consumer{conn: conn, queue: queue, handler: handler}
}

// Run subscribes to every shuttle subject in the queue group and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(SubjectAll, c.queue, func(msg *nats.Msg) {
		c.Dispatch(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectAll, err)
	}
	logger.L().Info("consumer subscribed", zap.String("subject", SubjectAll), zap.String("queue", c.queue))
	<-ctx.Done()
	return sub.Drain()
}

// Dispatch decodes one message and hands it to the handler. Failures are logged only.
func (c *Consumer) Dispatch(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.L().Warn("drop undecodable event", zap.Error(err))
		return
	}
	if err := c.handler(ctx, env); err != nil {
		logger.L().Error("event handler failed",
			zap.String("subject", env.Subject), zap.String("event_id", env.ID), zap.Error(err))
	}
}
