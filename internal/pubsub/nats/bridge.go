// Package nats re-publishes bus events to a NATS server so external
// consumers can subscribe without holding a connection to this process.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/bus"
)

const (
	subjectSwapCreated     = "swap.created"
	subjectCandleFinalized = "candle.finalized"
)

// Bridge forwards swap.created and candle.finalized to NATS subjects.
type Bridge struct {
	nc     *nats.Conn
	bus    *bus.Bus
	logger *zap.Logger
}

func NewBridge(url string, eventBus *bus.Bus, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	nc, err := nats.Connect(url,
		nats.Name("v4chart"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Bridge{nc: nc, bus: eventBus, logger: logger}, nil
}

// Run forwards events until ctx is cancelled. Publish failures are
// logged and dropped; the pipeline never waits on NATS.
func (b *Bridge) Run(ctx context.Context) {
	swaps := b.bus.SubscribeSwaps()
	candles := b.bus.SubscribeCandles()
	defer swaps.Close()
	defer candles.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-swaps.C:
			b.publish(subjectSwapCreated, rec)
		case fc := <-candles.C:
			b.publish(subjectCandleFinalized, fc)
		}
	}
}

func (b *Bridge) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains the connection.
func (b *Bridge) Close() {
	if b.nc == nil || b.nc.Status() == nats.CLOSED {
		return
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
