package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"erc20scan/internal/metrics"
	"erc20scan/internal/model"
	"erc20scan/internal/storage"
)

// LoopConfig holds the scan loop settings.
type LoopConfig struct {
	// ConfirmationDepth is subtracted from the chain head before a block is
	// considered safe to scan.
	ConfirmationDepth uint64
}

// Loop drives one address batch at a time through fetch, normalize, persist,
// and advance. Addresses sharing the same high-water mark are scanned
// together; the mark only moves after the window is durably persisted, so a
// crash mid-iteration re-scans the same window and the idempotent store
// absorbs the duplicates.
type Loop struct {
	cfg        LoopConfig
	fetcher    LogFetcher
	head       HeadSource
	progress   storage.ProgressStore
	normalizer *Normalizer
	persister  *Persister
	sizer      *Sizer
	logger     *zap.Logger
}

// NewLoop wires the scan loop from its collaborators.
func NewLoop(
	cfg LoopConfig,
	fetcher LogFetcher,
	head HeadSource,
	progress storage.ProgressStore,
	normalizer *Normalizer,
	persister *Persister,
	sizer *Sizer,
	logger *zap.Logger,
) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:        cfg,
		fetcher:    fetcher,
		head:       head,
		progress:   progress,
		normalizer: normalizer,
		persister:  persister,
		sizer:      sizer,
		logger:     logger,
	}
}

// Scan runs one scheduled invocation: every address batch gets at most one
// window. Transient fetch failures skip the batch and reset the window size;
// any other failure aborts the invocation without advancing marks.
func (l *Loop) Scan(ctx context.Context) error {
	watched, err := l.progress.WatchedAddresses(ctx)
	if err != nil {
		return fmt.Errorf("load watched addresses: %w", err)
	}
	if len(watched) == 0 {
		return nil
	}

	head, err := l.head.LatestBlockNumber(ctx)
	if err != nil {
		if IsTransient(err) {
			l.sizer.Reset()
			metrics.ScansTotal.WithLabelValues("transient").Inc()
			l.logger.Warn("chain head unavailable", zap.Error(err))
			return nil
		}
		return fmt.Errorf("get chain head: %w", err)
	}
	metrics.ChainHead.Set(float64(head))

	safeHead := uint64(0)
	if head > l.cfg.ConfirmationDepth {
		safeHead = head - l.cfg.ConfirmationDepth
	}

	for _, batch := range groupByMark(watched) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.scanBatch(ctx, batch, safeHead); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) scanBatch(ctx context.Context, batch addressBatch, safeHead uint64) error {
	fromBlock := batch.mark + 1
	if safeHead < fromBlock {
		metrics.ScansTotal.WithLabelValues("skip").Inc()
		return nil
	}

	windowSize := l.sizer.Current()
	toBlock := fromBlock + windowSize
	fullWindow := true
	if toBlock > safeHead {
		toBlock = safeHead
		fullWindow = false
	}

	addresses := make([]common.Address, len(batch.addresses))
	for i, addr := range batch.addresses {
		addresses[i] = common.HexToAddress(addr)
	}

	start := time.Now()
	logs, err := l.fetcher.FetchLogs(ctx, addresses, fromBlock, toBlock)
	elapsed := time.Since(start)
	if err != nil {
		if IsTransient(err) {
			l.sizer.Reset()
			metrics.ScansTotal.WithLabelValues("transient").Inc()
			metrics.WindowSize.Set(float64(l.sizer.Current()))
			l.logger.Warn("transient fetch failure, window reset",
				zap.Error(err),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
				zap.Uint64("window_size", l.sizer.Current()),
			)
			return nil
		}
		return fmt.Errorf("fetch logs [%d, %d]: %w", fromBlock, toBlock, err)
	}
	metrics.FetchLatency.Observe(elapsed.Seconds())

	txHashes, events, dropped := l.normalizer.Normalize(logs)
	if dropped > 0 {
		metrics.EntriesDropped.Add(float64(dropped))
	}

	created, err := l.persister.Persist(ctx, txHashes, events)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("persist batch [%d, %d]: %w", fromBlock, toBlock, err)
	}

	if err := l.progress.Advance(ctx, batch.addresses, toBlock); err != nil {
		return fmt.Errorf("advance high-water mark to %d: %w", toBlock, err)
	}

	newSize := l.sizer.Observe(elapsed, fullWindow)
	metrics.WindowSize.Set(float64(newSize))
	metrics.ScanHead.Set(float64(toBlock))
	metrics.EventsCreated.Add(float64(len(created)))
	metrics.ScansTotal.WithLabelValues("ok").Inc()

	logFn := l.logger.Debug
	if len(events) > 0 {
		logFn = l.logger.Info
	}
	logFn("window scanned",
		zap.Int("addresses", len(batch.addresses)),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("events", len(events)),
		zap.Int("created", len(created)),
		zap.Int("dropped", dropped),
		zap.Duration("elapsed", elapsed),
		zap.Uint64("window_size", newSize),
	)
	return nil
}

type addressBatch struct {
	mark      uint64
	addresses []string
}

// groupByMark batches addresses that share the same high-water mark so one
// query covers all of them, ordered by mark so the furthest-behind batch goes
// first.
func groupByMark(watched []model.WatchedAddress) []addressBatch {
	groups := make(map[uint64][]string, len(watched))
	for _, w := range watched {
		groups[w.LastProcessedBlock] = append(groups[w.LastProcessedBlock], w.Address)
	}

	batches := make([]addressBatch, 0, len(groups))
	for mark, addresses := range groups {
		sort.Strings(addresses)
		batches = append(batches, addressBatch{mark: mark, addresses: addresses})
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].mark < batches[j].mark })
	return batches
}
