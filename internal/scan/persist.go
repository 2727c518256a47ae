package scan

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"erc20scan/internal/model"
	"erc20scan/internal/storage"
)

// TransactionSource hydrates transaction metadata for hashes referenced by
// events but not yet stored.
type TransactionSource interface {
	TransactionRecord(ctx context.Context, hash common.Hash) (model.TransactionRecord, error)
}

// Persister writes a normalized batch to the durable store. Re-applying the
// same batch is a no-op: transactions upsert by hash, events insert with
// conflict-ignore on (tx_hash, log_index).
type Persister struct {
	store  storage.EventStore
	source TransactionSource
	logger *zap.Logger
}

// NewPersister builds a Persister.
func NewPersister(store storage.EventStore, source TransactionSource, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{store: store, source: source, logger: logger}
}

// Persist stores the referenced transactions and events of one batch and
// returns only the events that were newly created. txHashes must be
// deduplicated in first-seen order; hydration follows that order.
func (p *Persister) Persist(ctx context.Context, txHashes []common.Hash, events []model.TransferEvent) ([]model.TransferEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(txHashes))
	for i, hash := range txHashes {
		hashes[i] = hash.Hex()
	}

	missing, err := p.store.MissingTransactions(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("lookup missing transactions: %w", err)
	}

	if len(missing) > 0 {
		records := make([]model.TransactionRecord, 0, len(missing))
		for _, hash := range missing {
			record, err := p.source.TransactionRecord(ctx, common.HexToHash(hash))
			if err != nil {
				return nil, fmt.Errorf("hydrate transaction %s: %w", hash, err)
			}
			records = append(records, record)
		}
		if err := p.store.UpsertTransactions(ctx, records); err != nil {
			return nil, fmt.Errorf("upsert transactions: %w", err)
		}
	}

	created, err := p.store.InsertTransferEvents(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("insert events: %w", err)
	}

	p.logger.Debug("batch persisted",
		zap.Int("events", len(events)),
		zap.Int("created", len(created)),
		zap.Int("hydrated_txs", len(missing)),
	)
	return created, nil
}
