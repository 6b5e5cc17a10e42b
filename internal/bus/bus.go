package bus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// DefaultBufferSize bounds each subscriber's queue.
const DefaultBufferSize = 256

// Bus is the in-process pub/sub for swap.created and candle.finalized.
// Delivery is in-order per topic. Publishing never blocks: when a
// subscriber's buffer is full the oldest entry is dropped.
type Bus struct {
	logger *zap.Logger
	size   int

	mu         sync.RWMutex
	swapSubs   map[*SwapSubscription]struct{}
	candleSubs map[*CandleSubscription]struct{}
}

// SwapSubscription receives swap.created events on C until Close.
type SwapSubscription struct {
	C   chan model.SwapRecord
	bus *Bus
}

// CandleSubscription receives candle.finalized events on C until Close.
type CandleSubscription struct {
	C   chan model.FinalizedCandle
	bus *Bus
}

func New(logger *zap.Logger, bufferSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		logger:     logger,
		size:       bufferSize,
		swapSubs:   make(map[*SwapSubscription]struct{}),
		candleSubs: make(map[*CandleSubscription]struct{}),
	}
}

// SubscribeSwaps registers a swap.created subscriber.
func (b *Bus) SubscribeSwaps() *SwapSubscription {
	sub := &SwapSubscription{C: make(chan model.SwapRecord, b.size), bus: b}
	b.mu.Lock()
	b.swapSubs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// SubscribeCandles registers a candle.finalized subscriber.
func (b *Bus) SubscribeCandles() *CandleSubscription {
	sub := &CandleSubscription{C: make(chan model.FinalizedCandle, b.size), bus: b}
	b.mu.Lock()
	b.candleSubs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (s *SwapSubscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.swapSubs, s)
	s.bus.mu.Unlock()
}

func (s *CandleSubscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.candleSubs, s)
	s.bus.mu.Unlock()
}

// PublishSwap fans a persisted swap out to all subscribers.
func (b *Bus) PublishSwap(rec model.SwapRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.swapSubs {
		for {
			select {
			case sub.C <- rec:
			default:
				// full: shed the oldest entry and retry
				select {
				case <-sub.C:
					b.logger.Warn("swap subscriber buffer full, dropping oldest")
				default:
				}
				continue
			}
			break
		}
	}
}

// PublishCandle fans a finalized candle out to all subscribers.
func (b *Bus) PublishCandle(fc model.FinalizedCandle) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.candleSubs {
		for {
			select {
			case sub.C <- fc:
			default:
				select {
				case <-sub.C:
					b.logger.Warn("candle subscriber buffer full, dropping oldest")
				default:
				}
				continue
			}
			break
		}
	}
}
