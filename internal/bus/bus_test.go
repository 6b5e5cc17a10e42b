package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

func TestPublishSwapInOrder(t *testing.T) {
	b := New(zap.NewNop(), 16)
	sub := b.SubscribeSwaps()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.PublishSwap(model.SwapRecord{TxHash: fmt.Sprintf("0x%02d", i), LogIndex: uint64(i)})
	}

	for i := 0; i < 5; i++ {
		rec := <-sub.C
		require.Equal(t, uint64(i), rec.LogIndex)
	}
}

func TestPublishNeverBlocksDropsOldest(t *testing.T) {
	b := New(zap.NewNop(), 2)
	sub := b.SubscribeSwaps()
	defer sub.Close()

	// Nobody draining: publishing beyond the buffer must not block.
	for i := 0; i < 10; i++ {
		b.PublishSwap(model.SwapRecord{LogIndex: uint64(i)})
	}

	// The two newest entries survive.
	first := <-sub.C
	second := <-sub.C
	require.Equal(t, uint64(8), first.LogIndex)
	require.Equal(t, uint64(9), second.LogIndex)

	select {
	case rec := <-sub.C:
		t.Fatalf("unexpected extra record: %+v", rec)
	default:
	}
}

func TestCandleFanOut(t *testing.T) {
	b := New(zap.NewNop(), 8)
	sub1 := b.SubscribeCandles()
	sub2 := b.SubscribeCandles()
	defer sub1.Close()
	defer sub2.Close()

	fc := model.FinalizedCandle{
		Interval: model.IntervalMinute,
		Candle:   model.Candle{TokenAddress: "0xaa", BucketStart: 60, Status: model.CandleStatusFinalized},
	}
	b.PublishCandle(fc)

	require.Equal(t, fc, <-sub1.C)
	require.Equal(t, fc, <-sub2.C)
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New(zap.NewNop(), 8)
	sub := b.SubscribeSwaps()
	sub.Close()

	b.PublishSwap(model.SwapRecord{LogIndex: 1})

	select {
	case rec := <-sub.C:
		t.Fatalf("unexpected record after close: %+v", rec)
	default:
	}
}
