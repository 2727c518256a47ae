package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is topic0 of Transfer(address,address,uint256). ERC721 shares
// the same signature, so one filter catches both.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// LogFetcher performs one remote query for Transfer logs touching the address
// set within [fromBlock, toBlock]. The read is idempotent on the remote side;
// overlapping ranges are safe. Network, HTTP, and timeout failures come back
// wrapped in *TransientError; anything else is fatal to the iteration.
type LogFetcher interface {
	FetchLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]types.Log, error)
}

// HeadSource reports the current chain head.
type HeadSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// LogFilterer is the slice of the chain client the fetcher needs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// ChainFetcher queries Transfer logs through a chain client, splitting large
// address sets into chunks so a single request stays within node limits.
type ChainFetcher struct {
	client       LogFilterer
	chunkSize    int
	fetchTimeout time.Duration
}

// NewChainFetcher builds a fetcher. chunkSize caps addresses per request
// (default 500); timeout bounds each request and counts as transient when hit.
func NewChainFetcher(client LogFilterer, chunkSize int, timeout time.Duration) *ChainFetcher {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChainFetcher{client: client, chunkSize: chunkSize, fetchTimeout: timeout}
}

// FetchLogs implements LogFetcher. Results from all chunks are merged and
// ordered by (block number, log index).
func (f *ChainFetcher) FetchLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	if toBlock < fromBlock {
		return nil, fmt.Errorf("invalid range [%d, %d]", fromBlock, toBlock)
	}

	var merged []types.Log
	for start := 0; start < len(addresses); start += f.chunkSize {
		end := start + f.chunkSize
		if end > len(addresses) {
			end = len(addresses)
		}

		logs, err := f.fetchChunk(ctx, addresses[start:end], fromBlock, toBlock)
		if err != nil {
			if IsTransient(err) {
				return nil, &TransientError{Err: err}
			}
			return nil, err
		}
		merged = append(merged, logs...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].BlockNumber != merged[j].BlockNumber {
			return merged[i].BlockNumber < merged[j].BlockNumber
		}
		return merged[i].Index < merged[j].Index
	})
	return merged, nil
}

func (f *ChainFetcher) fetchChunk(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	return f.client.FilterLogs(ctx, fromBlock, toBlock, addresses, []common.Hash{TransferTopic})
}
