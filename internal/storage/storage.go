package storage

import (
	"context"

	"erc20scan/internal/model"
)

// ProgressStore tracks the per-address high-water mark. Advance must be
// durable before the next scan may treat the new mark as a lower bound.
type ProgressStore interface {
	// WatchedAddresses returns every address under scan with its mark.
	WatchedAddresses(ctx context.Context) ([]model.WatchedAddress, error)

	// Advance moves the mark for all given addresses to block. Marks never
	// move backwards; an address already past block keeps its mark.
	Advance(ctx context.Context, addresses []string, block uint64) error

	// AddWatchedAddress registers an address with its starting mark. Adding an
	// existing address is a no-op.
	AddWatchedAddress(ctx context.Context, address string, startBlock uint64) error
}

// EventStore persists transfer events and their referenced transactions.
// Inserts are idempotent: the (tx_hash, log_index) unique key silently skips
// conflicts, so re-running a window is a no-op.
type EventStore interface {
	// MissingTransactions filters hashes down to those not yet stored,
	// preserving input order.
	MissingTransactions(ctx context.Context, hashes []string) ([]string, error)

	// UpsertTransactions inserts transaction records, leaving existing rows
	// untouched.
	UpsertTransactions(ctx context.Context, txs []model.TransactionRecord) error

	// InsertTransferEvents bulk-inserts events and returns only those newly
	// created; already-present keys are skipped, not errors.
	InsertTransferEvents(ctx context.Context, events []model.TransferEvent) ([]model.TransferEvent, error)
}

// Store combines progress tracking and event persistence.
type Store interface {
	ProgressStore
	EventStore
}
