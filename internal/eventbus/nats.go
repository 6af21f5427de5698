package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects published by the API
const (
	SubjectAnswerServed = "chem.answers.served"
	SubjectIndexRebuilt = "chem.index.rebuilt"
)

// Publisher sends JSON events over NATS, through JetStream when it is available
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// Connect dials url and prepares a JetStream context. A server without
// JetStream still yields a usable core NATS publisher.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("chemistry-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	p := &Publisher{nc: nc, logger: logger}
	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("jetstream unavailable, using core nats", zap.Error(err))
		return p, nil
	}
	p.js = js
	return p, nil
}

// Connected reports whether the underlying connection is up
func (p *Publisher) Connected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

// Publish encodes v as JSON and sends it on subject
func (p *Publisher) Publish(ctx context.Context, subject string, v any) error {
	if !p.Connected() {
		return nats.ErrConnectionClosed
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if p.js != nil {
		_, err := p.js.PublishMsg(msg, nats.Context(ctx))
		if !errors.Is(err, nats.ErrNoStreamResponse) {
			return err
		}
	}
	// No stream captures the subject; deliver to live subscribers only.
	return p.nc.PublishMsg(msg)
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
