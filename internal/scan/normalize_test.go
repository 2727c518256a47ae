package scan

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func erc20Log(txHash common.Hash, index uint, value int64) types.Log {
	return types.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Topics: []common.Hash{
			TransferTopic,
			addressTopic(common.HexToAddress("0x1111111111111111111111111111111111111111")),
			addressTopic(common.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		Data:        common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
		BlockNumber: 120,
		TxHash:      txHash,
		Index:       index,
	}
}

func TestNormalizeERC20Transfer(t *testing.T) {
	n := NewNormalizer(nil)
	txHash := common.HexToHash("0x01")

	hashes, events, dropped := n.Normalize([]types.Log{erc20Log(txHash, 0, 12345)})
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(hashes) != 1 || hashes[0] != txHash {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	event := events[0]
	if event.Value != "12345" {
		t.Fatalf("value = %q, want 12345", event.Value)
	}
	if event.TokenID != "" {
		t.Fatalf("token id = %q, want empty", event.TokenID)
	}
	if event.From != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("from = %q", event.From)
	}
	if event.LogIndex != 0 || event.BlockNumber != 120 {
		t.Fatalf("unexpected key fields: %+v", event)
	}
}

func TestNormalizeERC721Transfer(t *testing.T) {
	n := NewNormalizer(nil)
	entry := erc20Log(common.HexToHash("0x02"), 3, 0)
	entry.Topics = append(entry.Topics, common.BigToHash(big.NewInt(777)))
	entry.Data = nil

	_, events, dropped := n.Normalize([]types.Log{entry})
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].TokenID != "777" {
		t.Fatalf("token id = %q, want 777", events[0].TokenID)
	}
	if events[0].Value != "" {
		t.Fatalf("value = %q, want empty", events[0].Value)
	}
}

func TestNormalizeDropsMalformedEntries(t *testing.T) {
	n := NewNormalizer(nil)

	short := erc20Log(common.HexToHash("0x03"), 0, 1)
	short.Data = []byte{0x01} // truncated value word

	wrongTopic := erc20Log(common.HexToHash("0x04"), 1, 1)
	wrongTopic.Topics[0] = common.HexToHash("0xdead")

	good := erc20Log(common.HexToHash("0x05"), 2, 9)

	hashes, events, dropped := n.Normalize([]types.Log{short, wrongTopic, good})
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(events) != 1 || events[0].Value != "9" {
		t.Fatalf("unexpected surviving events: %+v", events)
	}
	if len(hashes) != 1 || hashes[0] != good.TxHash {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
}

func TestNormalizeDeduplicatesHashesInFirstSeenOrder(t *testing.T) {
	n := NewNormalizer(nil)
	txA := common.HexToHash("0x0a")
	txB := common.HexToHash("0x0b")

	logs := []types.Log{
		erc20Log(txA, 0, 1),
		erc20Log(txB, 1, 2),
		erc20Log(txA, 2, 3),
		erc20Log(txB, 3, 4),
	}

	hashes, events, _ := n.Normalize(logs)
	if !reflect.DeepEqual(hashes, []common.Hash{txA, txB}) {
		t.Fatalf("hashes = %v, want [%s %s]", hashes, txA, txB)
	}
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
}
