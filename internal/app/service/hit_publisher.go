package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/tovald/pageflow/internal/app/model"
)

// HitPublisher publishes accepted hits to NATS JetStream. Publishing is
// synchronous: in stream mode a failed publish is a persistence failure and
// the request must surface a 500.
type HitPublisher struct {
	js nats.JetStreamContext
}

// NewHitPublisher creates a publisher over the hits stream.
func NewHitPublisher(js nats.JetStreamContext) *HitPublisher {
	return &HitPublisher{js: js}
}

// EnsureStream creates the hits stream when missing.
func (p *HitPublisher) EnsureStream() error {
	if _, err := p.js.StreamInfo(model.HitStreamName); err == nil {
		return nil
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     model.HitStreamName,
		Subjects: []string{model.HitStreamSubject},
		MaxBytes: model.HitStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create hits stream: %w", err)
	}
	return nil
}

// Publish sends one event to the stream.
func (p *HitPublisher) Publish(ctx context.Context, event *model.WebsiteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal hit: %w", err)
	}
	if _, err := p.js.Publish(model.HitStreamSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish hit: %w", err)
	}
	return nil
}
