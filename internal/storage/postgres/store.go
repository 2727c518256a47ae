package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"erc20scan/internal/model"
)

// Store provides Postgres persistence for scan progress, transactions, and
// transfer events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WatchedAddresses returns every watched address with its high-water mark.
func (s *Store) WatchedAddresses(ctx context.Context) ([]model.WatchedAddress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, last_processed_block
		FROM watched_addresses
		ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watched []model.WatchedAddress
	for rows.Next() {
		var w model.WatchedAddress
		var mark int64
		if err := rows.Scan(&w.Address, &mark); err != nil {
			return nil, err
		}
		w.LastProcessedBlock = uint64(mark)
		watched = append(watched, w)
	}
	return watched, rows.Err()
}

// Advance moves the mark for the given addresses to block. The guard keeps
// marks monotonic even if an older iteration replays.
func (s *Store) Advance(ctx context.Context, addresses []string, block uint64) error {
	if len(addresses) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE watched_addresses
		SET last_processed_block = $1, updated_at = now()
		WHERE address = ANY($2) AND last_processed_block < $1
	`, int64(block), addresses)
	return err
}

// AddWatchedAddress registers an address; re-adding is a no-op.
func (s *Store) AddWatchedAddress(ctx context.Context, address string, startBlock uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watched_addresses (address, last_processed_block, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (address) DO NOTHING
	`, address, int64(startBlock))
	return err
}

// MissingTransactions filters hashes down to those not yet stored, preserving
// input order.
func (s *Store) MissingTransactions(ctx context.Context, hashes []string) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT tx_hash FROM ethereum_txs WHERE tx_hash = ANY($1)`, hashes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(hashes))
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		existing[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missing := make([]string, 0, len(hashes)-len(existing))
	for _, hash := range hashes {
		if _, ok := existing[hash]; !ok {
			missing = append(missing, hash)
		}
	}
	return missing, nil
}

// UpsertTransactions inserts transaction records, leaving existing rows
// untouched.
func (s *Store) UpsertTransactions(ctx context.Context, txs []model.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(`
			INSERT INTO ethereum_txs (
				tx_hash, block_number, from_address, to_address, value, gas_price, nonce, created_at
			) VALUES ($1, $2, $3, NULLIF($4, ''), $5::numeric, NULLIF($6, '')::numeric, $7, now())
			ON CONFLICT (tx_hash) DO NOTHING
		`,
			tx.TxHash,
			int64(tx.BlockNumber),
			tx.From,
			tx.To,
			tx.Value,
			tx.GasPrice,
			int64(tx.Nonce),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range txs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertTransferEvents bulk-inserts events with conflict-ignore on the
// (tx_hash, log_index) key and returns only the newly created ones.
func (s *Store) InsertTransferEvents(ctx context.Context, events []model.TransferEvent) ([]model.TransferEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO transfer_events (
				tx_hash, log_index, block_number, token_address, from_address, to_address,
				value, token_id, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::numeric, NULLIF($8, '')::numeric, now())
			ON CONFLICT (tx_hash, log_index) DO NOTHING
			RETURNING tx_hash
		`,
			event.TxHash,
			int64(event.LogIndex),
			int64(event.BlockNumber),
			event.TokenAddress,
			event.From,
			event.To,
			event.Value,
			event.TokenID,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	created := make([]model.TransferEvent, 0, len(events))
	for _, event := range events {
		var hash string
		err := br.QueryRow().Scan(&hash)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		created = append(created, event)
	}
	return created, nil
}
