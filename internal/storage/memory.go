package storage

import (
	"context"
	"sync"

	"erc20scan/internal/model"
)

// MemoryStore is a map-backed Store used by tests and dry runs. It mirrors the
// conflict-ignore semantics of the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	marks  map[string]uint64
	txs    map[string]model.TransactionRecord
	events map[model.EventKey]model.TransferEvent
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		marks:  make(map[string]uint64),
		txs:    make(map[string]model.TransactionRecord),
		events: make(map[model.EventKey]model.TransferEvent),
	}
}

// WatchedAddresses implements ProgressStore.
func (s *MemoryStore) WatchedAddresses(_ context.Context) ([]model.WatchedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.WatchedAddress, 0, len(s.marks))
	for addr, mark := range s.marks {
		out = append(out, model.WatchedAddress{Address: addr, LastProcessedBlock: mark})
	}
	return out, nil
}

// Advance implements ProgressStore.
func (s *MemoryStore) Advance(_ context.Context, addresses []string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, addr := range addresses {
		if mark, ok := s.marks[addr]; ok && mark < block {
			s.marks[addr] = block
		}
	}
	return nil
}

// AddWatchedAddress implements ProgressStore.
func (s *MemoryStore) AddWatchedAddress(_ context.Context, address string, startBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marks[address]; !ok {
		s.marks[address] = startBlock
	}
	return nil
}

// MissingTransactions implements EventStore.
func (s *MemoryStore) MissingTransactions(_ context.Context, hashes []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missing := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if _, ok := s.txs[hash]; !ok {
			missing = append(missing, hash)
		}
	}
	return missing, nil
}

// UpsertTransactions implements EventStore.
func (s *MemoryStore) UpsertTransactions(_ context.Context, txs []model.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if _, ok := s.txs[tx.TxHash]; !ok {
			s.txs[tx.TxHash] = tx
		}
	}
	return nil
}

// InsertTransferEvents implements EventStore.
func (s *MemoryStore) InsertTransferEvents(_ context.Context, events []model.TransferEvent) ([]model.TransferEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]model.TransferEvent, 0, len(events))
	for _, event := range events {
		key := event.Key()
		if _, ok := s.events[key]; ok {
			continue
		}
		s.events[key] = event
		created = append(created, event)
	}
	return created, nil
}

// EventCount returns the number of stored events.
func (s *MemoryStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// TransactionCount returns the number of stored transactions.
func (s *MemoryStore) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}
