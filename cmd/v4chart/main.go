package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/homelanderlovecoding/v4-chart-api/internal/aggregate"
	apihttp "github.com/homelanderlovecoding/v4-chart-api/internal/api/http"
	"github.com/homelanderlovecoding/v4-chart-api/internal/api/ws"
	"github.com/homelanderlovecoding/v4-chart-api/internal/bus"
	"github.com/homelanderlovecoding/v4-chart-api/internal/chain"
	"github.com/homelanderlovecoding/v4-chart-api/internal/config"
	"github.com/homelanderlovecoding/v4-chart-api/internal/dex"
	"github.com/homelanderlovecoding/v4-chart-api/internal/ingest"
	"github.com/homelanderlovecoding/v4-chart-api/internal/oracle"
	"github.com/homelanderlovecoding/v4-chart-api/internal/pools"
	natsbridge "github.com/homelanderlovecoding/v4-chart-api/internal/pubsub/nats"
	"github.com/homelanderlovecoding/v4-chart-api/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "v4chart",
		Short:        "Uniswap V4 pool manager market-data indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingest pipeline and query API",
		RunE:  runPipeline,
	}

	runCmd.Flags().String("rpc", "", "chain RPC URL (websocket for live subscription)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().String("pool-manager-address", "", "pool manager contract address")
	runCmd.Flags().Uint64("starting-block", 0, "first block of the initial sync (inclusive)")
	runCmd.Flags().Uint64("sync-batch-size", 1000, "blocks per backfill batch")
	runCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("live-queue-size", 4096, "live log FIFO capacity")
	runCmd.Flags().String("wrapped-native-address", "", "wrapped native token address")
	runCmd.Flags().String("stablecoin-native-pool-id", "", "stablecoin/wrapped-native pool id")
	runCmd.Flags().Bool("stablecoin-is-token0", false, "stablecoin side of the reference pool")
	runCmd.Flags().StringSlice("stablecoin-addresses", nil, "stablecoin addresses (comma-separated)")
	runCmd.Flags().StringSlice("whitelist-tokens", nil, "whitelisted reference tokens (comma-separated)")
	runCmd.Flags().String("minimum-native-locked", "1", "minimum native-denominated TVL for a price source pool")
	runCmd.Flags().String("http-addr", ":8080", "query API listen address")
	runCmd.Flags().String("nats-url", "", "optional NATS URL for external fan-out")
	runCmd.Flags().Int("bus-buffer-size", 256, "per-subscriber event buffer")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if !common.IsHexAddress(cfg.PoolManagerAddress) {
		return fmt.Errorf("valid pool manager address is required")
	}

	minimumNativeLocked, err := decimal.NewFromString(cfg.MinimumNativeLocked)
	if err != nil {
		return fmt.Errorf("minimum native locked: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	eventBus := bus.New(logger, cfg.BusBufferSize)

	priceOracle := oracle.New(oracle.Config{
		WrappedNativeAddress:   cfg.WrappedNativeAddress,
		StablecoinNativePoolID: cfg.StablecoinNativePoolID,
		StablecoinIsToken0:     cfg.StablecoinIsToken0,
		StablecoinAddresses:    cfg.StablecoinAddresses,
		MinimumNativeLocked:    minimumNativeLocked,
	}, store, logger)

	aggregator := aggregate.New(store, priceOracle, chainClient, eventBus, logger)
	machine := pools.NewMachine(store, aggregator, cfg.WhitelistTokens, logger)

	decoder, err := dex.NewDecoder()
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	orchestrator := ingest.NewOrchestrator(ingest.Config{
		PoolManagerAddress: common.HexToAddress(cfg.PoolManagerAddress),
		StartingBlock:      cfg.StartingBlock,
		BatchSize:          cfg.SyncBatchSize,
		MaxRetries:         cfg.MaxRetries,
		RetryBackoff:       cfg.RetryBackoff,
		LiveQueueSize:      cfg.LiveQueueSize,
	}, chainClient, decoder, machine, store, store, logger)

	finalizer := aggregate.NewFinalizer(aggregator, logger)
	go finalizer.Run(ctx)

	api := apihttp.NewAPI(store, cfg.PoolManagerAddress, logger)
	router := api.Router()
	router.Get("/ws", ws.NewGateway(eventBus, logger).Handle)

	server := apihttp.NewServer(cfg.HTTPAddr, router, logger)
	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	if cfg.NATSURL != "" {
		bridge, err := natsbridge.NewBridge(cfg.NATSURL, eventBus, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		go bridge.Run(ctx)
	}

	logger.Info("indexer start",
		zap.String("pool_manager", cfg.PoolManagerAddress),
		zap.Uint64("starting_block", cfg.StartingBlock),
		zap.Uint64("sync_batch_size", cfg.SyncBatchSize),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
