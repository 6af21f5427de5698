package eventbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// AnswersStream retains audit events for replay by downstream consumers
const AnswersStream = "CHEM_EVENTS"

// StreamConfig returns the JetStream stream holding every chem.* event
func StreamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:     AnswersStream,
		Subjects: []string{"chem.>"},
		MaxAge:   7 * 24 * time.Hour,
		Storage:  nats.FileStorage,
	}
}

// EnsureStream creates the events stream, or updates it when it already exists
func (p *Publisher) EnsureStream() error {
	if p == nil || p.js == nil {
		return errors.New("jetstream not initialized")
	}
	cfg := StreamConfig()
	if _, err := p.js.StreamInfo(cfg.Name); err == nil {
		if _, err := p.js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", cfg.Name, err)
		}
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", cfg.Name, err)
	}
	if _, err := p.js.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
	}
	return nil
}
