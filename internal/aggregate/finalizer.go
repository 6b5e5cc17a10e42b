package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// Finalizer runs one long-lived task per interval that sleeps until the
// next period boundary and promotes the just-ended bucket's candles.
type Finalizer struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

func NewFinalizer(aggregator *Aggregator, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{aggregator: aggregator, logger: logger}
}

// Run blocks until ctx is cancelled.
func (f *Finalizer) Run(ctx context.Context) {
	done := make(chan struct{})
	for _, interval := range model.Intervals {
		go func(interval model.Interval) {
			defer func() { done <- struct{}{} }()
			f.runInterval(ctx, interval)
		}(interval)
	}
	for range model.Intervals {
		<-done
	}
}

func (f *Finalizer) runInterval(ctx context.Context, interval model.Interval) {
	for {
		now := time.Now().UTC()
		next := nextBoundary(now, interval)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := f.aggregator.Finalize(ctx, interval, next); err != nil {
			f.logger.Error("finalize failed",
				zap.String("interval", string(interval)), zap.Error(err))
		}
	}
}

func nextBoundary(now time.Time, interval model.Interval) time.Time {
	bucket := time.Unix(interval.Truncate(uint64(now.Unix())), 0).UTC()
	return bucket.Add(interval.Duration())
}
