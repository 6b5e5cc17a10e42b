package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// ChainReader abstracts the pool manager's chain surface.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error)
	SubscribeLogs(ctx context.Context, address common.Address, topic0 []common.Hash, sink chan<- types.Log) (ethereum.Subscription, error)
}

// LogDecoder turns a raw log plus its block timestamp into a typed event.
type LogDecoder interface {
	Topic0Filter() []common.Hash
	Decode(log types.Log, timestamp uint64) (interface{}, error)
}

// EventHandler applies one decoded event; the pool state machine.
type EventHandler interface {
	Apply(ctx context.Context, event interface{}) error
}

// SyncStore persists sync-state checkpoints.
type SyncStore interface {
	GetSyncState(ctx context.Context, poolManagerAddress string) (model.SyncState, bool, error)
	SaveSyncState(ctx context.Context, state model.SyncState) error
}

// HealthChecker distinguishes a broken store from a bad event.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config holds orchestrator settings.
type Config struct {
	PoolManagerAddress common.Address
	StartingBlock      uint64
	BatchSize          uint64
	MaxRetries         int
	RetryBackoff       time.Duration
	LiveQueueSize      int
}

// Orchestrator merges historical backfill with the live subscription
// into one strictly ordered event stream. Live logs arriving during
// backfill are buffered in the bounded FIFO and drained afterwards; on
// overflow the oldest entry is dropped — the (tx_hash, log_index)
// unique index keeps persistence exactly-once either way.
type Orchestrator struct {
	cfg     Config
	chain   ChainReader
	decoder LogDecoder
	handler EventHandler
	sync    SyncStore
	health  HealthChecker
	logger  *zap.Logger

	manager string
	live    chan types.Log
}

func NewOrchestrator(cfg Config, chainReader ChainReader, decoder LogDecoder, handler EventHandler, syncStore SyncStore, health HealthChecker, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.LiveQueueSize <= 0 {
		cfg.LiveQueueSize = 4096
	}
	return &Orchestrator{
		cfg:     cfg,
		chain:   chainReader,
		decoder: decoder,
		handler: handler,
		sync:    syncStore,
		health:  health,
		logger:  logger,
		manager: strings.ToLower(cfg.PoolManagerAddress.Hex()),
		live:    make(chan types.Log, cfg.LiveQueueSize),
	}
}

// Run executes backfill then consumes live logs until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	sub, err := o.subscribe(ctx)
	if err != nil {
		o.logger.Warn("live subscription unavailable, backfill only", zap.Error(err))
	} else {
		defer sub.Unsubscribe()
	}

	if err := o.backfill(ctx); err != nil {
		return err
	}

	return o.consumeLive(ctx, sub)
}

func (o *Orchestrator) subscribe(ctx context.Context) (ethereum.Subscription, error) {
	ingress := make(chan types.Log, 256)
	sub, err := o.chain.SubscribeLogs(ctx, o.cfg.PoolManagerAddress, o.decoder.Topic0Filter(), ingress)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case log, ok := <-ingress:
				if !ok {
					return
				}
				select {
				case o.live <- log:
				default:
					select {
					case dropped := <-o.live:
						o.logger.Warn("live queue full, dropping oldest",
							zap.Uint64("dropped_block", dropped.BlockNumber),
							zap.Uint("dropped_log_index", dropped.Index),
						)
					default:
					}
					select {
					case o.live <- log:
					default:
						o.logger.Warn("live queue full, dropping incoming",
							zap.Uint64("block", log.BlockNumber),
							zap.Uint("log_index", log.Index),
						)
					}
				}
			}
		}
	}()

	return sub, nil
}

func (o *Orchestrator) backfill(ctx context.Context) error {
	state, found, err := o.sync.GetSyncState(ctx, o.manager)
	if err != nil {
		return fmt.Errorf("load sync state: %w", err)
	}

	from := o.cfg.StartingBlock
	if found && state.LastSyncedBlock+1 > from {
		from = state.LastSyncedBlock + 1
		o.logger.Info("resume from sync state", zap.Uint64("last_synced", state.LastSyncedBlock))
	}

	for {
		head, err := o.latestWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}

		if from > head {
			break
		}

		ranges, err := SplitRange(from, head, o.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, blockRange := range ranges {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			logs, err := o.filterWithRetry(ctx, blockRange.From, blockRange.To)
			if err != nil {
				return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
			}

			for _, log := range logs {
				if err := o.process(ctx, log); err != nil {
					return err
				}
			}

			if err := o.sync.SaveSyncState(ctx, model.SyncState{
				PoolManagerAddress: o.manager,
				LastSyncedBlock:    blockRange.To,
				CurrentBlock:       head,
			}); err != nil {
				return fmt.Errorf("save sync state: %w", err)
			}

			o.logger.Info("batch complete",
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
				zap.Int("logs", len(logs)),
			)
		}

		// The head may have advanced while the batches ran.
		from = head + 1
	}

	head, err := o.latestWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if err := o.sync.SaveSyncState(ctx, model.SyncState{
		PoolManagerAddress:    o.manager,
		LastSyncedBlock:       from - 1,
		CurrentBlock:          head,
		IsInitialSyncComplete: true,
	}); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}

	o.logger.Info("initial sync complete", zap.Uint64("head", from-1))
	return nil
}

func (o *Orchestrator) consumeLive(ctx context.Context, sub ethereum.Subscription) error {
	var subErr <-chan error
	if sub != nil {
		subErr = sub.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-subErr:
			if err != nil {
				return fmt.Errorf("live subscription: %w", err)
			}
			return nil
		case log := <-o.live:
			if err := o.process(ctx, log); err != nil {
				return err
			}
			if err := o.sync.SaveSyncState(ctx, model.SyncState{
				PoolManagerAddress:    o.manager,
				LastSyncedBlock:       log.BlockNumber,
				CurrentBlock:          log.BlockNumber,
				IsInitialSyncComplete: true,
			}); err != nil {
				return fmt.Errorf("save sync state: %w", err)
			}
		}
	}
}

// process applies one log end to end. Handler errors are logged and the
// event skipped unless the store itself is down, which is fatal.
func (o *Orchestrator) process(ctx context.Context, log types.Log) error {
	if log.Removed {
		return nil
	}

	ts, err := o.timestampWithRetry(ctx, log.BlockNumber)
	if err != nil {
		return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
	}

	event, err := o.decoder.Decode(log, ts)
	if err != nil {
		o.logger.Warn("undecodable log skipped",
			zap.Uint64("block", log.BlockNumber),
			zap.Uint("log_index", log.Index),
			zap.Error(err),
		)
		return nil
	}

	if err := o.handler.Apply(ctx, event); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if o.health != nil {
			if pingErr := o.health.Ping(ctx); pingErr != nil {
				return fmt.Errorf("database unavailable: %w", pingErr)
			}
		}
		o.logger.Warn("event handling failed, skipped",
			zap.Uint64("block", log.BlockNumber),
			zap.Uint("log_index", log.Index),
			zap.Error(err),
		)
	}
	return nil
}

func (o *Orchestrator) latestWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = o.chain.LatestBlockNumber(ctx)
		if err != nil {
			o.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (o *Orchestrator) filterWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = o.chain.FilterLogs(ctx, fromBlock, toBlock, o.cfg.PoolManagerAddress, o.decoder.Topic0Filter())
		if err != nil {
			o.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (o *Orchestrator) timestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = o.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			o.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
