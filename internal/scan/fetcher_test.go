package scan

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeFilterer struct {
	calls [][]common.Address
	logs  map[common.Address][]types.Log
	err   error
}

func (f *fakeFilterer) FilterLogs(_ context.Context, _, _ uint64, addresses []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.calls = append(f.calls, addresses)
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Log
	for _, addr := range addresses {
		out = append(out, f.logs[addr]...)
	}
	return out, nil
}

func testAddresses(n int) []common.Address {
	addrs := make([]common.Address, n)
	for i := range addrs {
		addrs[i] = common.BigToAddress(common.Big1)
		addrs[i][19] = byte(i + 1)
	}
	return addrs
}

func TestChainFetcherChunksAddresses(t *testing.T) {
	filterer := &fakeFilterer{}
	fetcher := NewChainFetcher(filterer, 2, time.Second)

	if _, err := fetcher.FetchLogs(context.Background(), testAddresses(5), 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(filterer.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(filterer.calls))
	}
	if len(filterer.calls[0]) != 2 || len(filterer.calls[1]) != 2 || len(filterer.calls[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %v", filterer.calls)
	}
}

func TestChainFetcherMergesOrdered(t *testing.T) {
	addrs := testAddresses(2)
	filterer := &fakeFilterer{logs: map[common.Address][]types.Log{
		addrs[0]: {{BlockNumber: 9, Index: 1}, {BlockNumber: 5, Index: 2}},
		addrs[1]: {{BlockNumber: 5, Index: 0}, {BlockNumber: 7, Index: 0}},
	}}
	fetcher := NewChainFetcher(filterer, 1, time.Second)

	logs, err := fetcher.FetchLogs(context.Background(), addrs, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var prevBlock uint64
	var prevIndex uint
	for i, entry := range logs {
		if i > 0 && (entry.BlockNumber < prevBlock || (entry.BlockNumber == prevBlock && entry.Index < prevIndex)) {
			t.Fatalf("logs out of order at %d: %+v", i, logs)
		}
		prevBlock, prevIndex = entry.BlockNumber, entry.Index
	}
	if len(logs) != 4 {
		t.Fatalf("logs = %d, want 4", len(logs))
	}
}

func TestChainFetcherWrapsNetworkErrors(t *testing.T) {
	filterer := &fakeFilterer{err: &net.DNSError{Err: "no such host", IsTimeout: true}}
	fetcher := NewChainFetcher(filterer, 10, time.Second)

	_, err := fetcher.FetchLogs(context.Background(), testAddresses(1), 1, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not transient", err)
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient(%v) = false", err)
	}
}

func TestChainFetcherPropagatesFatalErrors(t *testing.T) {
	fatal := errors.New("query returned more than 10000 results")
	filterer := &fakeFilterer{err: fatal}
	fetcher := NewChainFetcher(filterer, 10, time.Second)

	_, err := fetcher.FetchLogs(context.Background(), testAddresses(1), 1, 10)
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want wrapped fatal error", err)
	}
	if IsTransient(err) {
		t.Fatalf("fatal error classified as transient")
	}
}

func TestChainFetcherRejectsInvalidRange(t *testing.T) {
	fetcher := NewChainFetcher(&fakeFilterer{}, 10, time.Second)
	if _, err := fetcher.FetchLogs(context.Background(), testAddresses(1), 10, 9); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestIsTransientTimeout(t *testing.T) {
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil should not be transient")
	}
	if IsTransient(errors.New("constraint violation")) {
		t.Fatalf("plain error should not be transient")
	}
}
