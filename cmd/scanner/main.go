package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"erc20scan/internal/chain"
	"erc20scan/internal/config"
	"erc20scan/internal/scan"
	"erc20scan/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "scanner",
		Short:        "ERC20/ERC721 transfer event scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scan loop",
		RunE:  runScanner,
	}

	runCmd.Flags().String("rpc", "", "node RPC URL")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().Uint64("block-process-limit", 10000, "initial window size in blocks")
	runCmd.Flags().Uint64("min-window-size", 100, "window size floor")
	runCmd.Flags().Uint64("window-step", 10000, "additive window adjustment step")
	runCmd.Flags().Uint64("updated-blocks-behind", 300, "confirmation depth behind chain head")
	runCmd.Flags().Int("query-chunk-size", 500, "max addresses per log query")
	runCmd.Flags().Duration("fetch-timeout", 30*time.Second, "per-request fetch timeout")
	runCmd.Flags().Duration("fast-threshold", 2*time.Second, "queries faster than this double the window")
	runCmd.Flags().Duration("target-threshold", 5*time.Second, "upper bound of the grow band")
	runCmd.Flags().Duration("slow-threshold", 30*time.Second, "queries slower than this halve the window")
	runCmd.Flags().Duration("poll-interval", 15*time.Second, "delay between scan invocations")
	runCmd.Flags().String("metrics-listen", ":9090", "prometheus listen address")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch <address>",
		Short: "Register an address to scan",
		Args:  cobra.ExactArgs(1),
		RunE:  watchAddress,
	}

	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	watchCmd.Flags().Uint64("start-block", 0, "block to start scanning from")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScanner(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.PGDSN); err != nil {
		return err
	}

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

	fetcher := scan.NewChainFetcher(chainClient, cfg.QueryChunkSize, cfg.FetchTimeout)
	sizer := scan.NewSizer(scan.Tuning{
		InitialWindow:   cfg.BlockProcessLimit,
		MinWindow:       cfg.MinWindowSize,
		Step:            cfg.WindowStep,
		FastThreshold:   cfg.FastThreshold,
		TargetThreshold: cfg.TargetThreshold,
		SlowThreshold:   cfg.SlowThreshold,
	})
	loop := scan.NewLoop(
		scan.LoopConfig{ConfirmationDepth: cfg.UpdatedBlocksBehind},
		fetcher,
		chainClient,
		store,
		scan.NewNormalizer(logger),
		scan.NewPersister(store, chainClient, logger),
		sizer,
		logger,
	)

	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen, logger)
	}

	logger.Info("scanner start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("block_process_limit", cfg.BlockProcessLimit),
		zap.Uint64("min_window_size", cfg.MinWindowSize),
		zap.Uint64("updated_blocks_behind", cfg.UpdatedBlocksBehind),
		zap.Int("query_chunk_size", cfg.QueryChunkSize),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := loop.Scan(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Idempotent persistence makes re-running the failed window safe.
			logger.Error("scan iteration failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func watchAddress(cmd *cobra.Command, args []string) error {
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

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	addresses, err := scan.ParseAddresses(args)
	if err != nil {
		return err
	}
	startBlock, _ := cmd.Flags().GetUint64("start-block")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.PGDSN); err != nil {
		return err
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	for _, address := range addresses {
		if err := store.AddWatchedAddress(ctx, address.Hex(), startBlock); err != nil {
			return fmt.Errorf("add watched address: %w", err)
		}
		logger.Info("address registered", zap.String("address", address.Hex()), zap.Uint64("start_block", startBlock))
	}
	return nil
}

func serveMetrics(listen string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
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
