package service

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tovald/pageflow/internal/app/model"
	infraprom "github.com/tovald/pageflow/internal/infra/prometheus"
	"go.uber.org/zap"
)

// StreamLagChecker periodically samples how far the archive consumer trails
// the hits stream and exports it as a gauge. In stream mode a growing backlog
// is the first sign the analytical store stopped keeping up.
type StreamLagChecker struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	metrics  *infraprom.IngestMetrics
	interval time.Duration
	stopChan chan struct{}
}

// NewStreamLagChecker creates a new lag checker.
func NewStreamLagChecker(js nats.JetStreamContext, logger *zap.Logger, metrics *infraprom.IngestMetrics) *StreamLagChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamLagChecker{
		js:       js,
		logger:   logger,
		metrics:  metrics,
		interval: 30 * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sampling.
func (c *StreamLagChecker) Start() {
	go c.run()
}

// Stop stops the periodic sampling.
func (c *StreamLagChecker) Stop() {
	close(c.stopChan)
}

func (c *StreamLagChecker) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.stopChan:
			c.logger.Info("stream lag checker stopped")
			return
		}
	}
}

func (c *StreamLagChecker) sample() {
	info, err := c.js.ConsumerInfo(model.HitStreamName, model.HitConsumerName)
	if err != nil {
		c.logger.Warn("failed to read consumer info", zap.Error(err))
		return
	}

	pending := float64(info.NumPending)
	c.metrics.SetStreamPending(pending)

	if info.NumPending > 0 {
		c.logger.Debug("archive consumer backlog",
			zap.Uint64("pending", info.NumPending),
			zap.Int("ack_pending", info.NumAckPending),
		)
	}
}
