package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tovald/pageflow/internal/app/model"
	"github.com/tovald/pageflow/internal/app/repository"
	"go.uber.org/zap"
)

const (
	consumerFetchBatch = 50

	// Pause between retries when the fetch itself fails, so a NATS outage
	// does not spin a hot error loop.
	defaultFetchBackoff = 2 * time.Second
)

// hitFetcher is the slice of *nats.Subscription the consume loop uses.
type hitFetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// HitConsumer drains accepted hits from JetStream into the append-only
// archive. Batches keep the archive writes cheap; redelivered messages are
// dropped by the archive's conflict handling.
type HitConsumer struct {
	js           nats.JetStreamContext
	logger       *zap.Logger
	archive      *repository.HitArchive
	fetchBackoff time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewHitConsumer creates a new archive consumer.
func NewHitConsumer(js nats.JetStreamContext, logger *zap.Logger, archive *repository.HitArchive) *HitConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HitConsumer{
		js:           js,
		logger:       logger,
		archive:      archive,
		fetchBackoff: defaultFetchBackoff,
		stopChan:     make(chan struct{}),
	}
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (c *HitConsumer) Start() error {
	if _, err := c.js.StreamInfo(model.HitStreamName); err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.HitStreamName,
			Subjects: []string{model.HitStreamSubject},
			MaxBytes: model.HitStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := c.js.ConsumerInfo(model.HitStreamName, model.HitConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.HitStreamName, &nats.ConsumerConfig{
			Durable:   model.HitConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.HitStreamSubject, model.HitConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop ends the consume loop after the in-flight fetch completes.
func (c *HitConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *HitConsumer) consume(sub hitFetcher) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopChan:
			c.logger.Info("hit consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(consumerFetchBatch, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch hits", zap.Error(err))
			select {
			case <-c.stopChan:
				c.logger.Info("hit consumer stopped")
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		batch := make([]model.WebsiteEvent, 0, len(msgs))
		valid := msgs[:0]
		for _, msg := range msgs {
			var event model.WebsiteEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal hit", zap.Error(err))
				msg.Nak()
				continue
			}
			batch = append(batch, event)
			valid = append(valid, msg)
		}

		if len(batch) == 0 {
			continue
		}

		written, err := c.archive.InsertBatch(ctx, batch)
		if err != nil {
			c.logger.Error("failed to archive hits",
				zap.Int("batch", len(batch)),
				zap.Error(err))
			for _, msg := range valid {
				msg.Nak()
			}
			continue
		}

		c.logger.Debug("hits archived",
			zap.Int("batch", len(batch)),
			zap.Int64("written", written),
		)

		for _, msg := range valid {
			msg.Ack()
		}
	}
}
