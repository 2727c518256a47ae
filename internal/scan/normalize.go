package scan

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"erc20scan/internal/model"
)

// Normalizer maps raw Transfer logs into domain events. A malformed entry is
// dropped and logged, never fatal to the batch.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize decodes a batch of logs. It returns the referenced transaction
// hashes deduplicated in first-seen order, the decoded events, and the number
// of malformed entries dropped.
func (n *Normalizer) Normalize(logs []types.Log) ([]common.Hash, []model.TransferEvent, int) {
	seen := make(map[common.Hash]struct{}, len(logs))
	hashes := make([]common.Hash, 0, len(logs))
	events := make([]model.TransferEvent, 0, len(logs))
	dropped := 0

	for _, entry := range logs {
		event, err := decodeTransfer(entry)
		if err != nil {
			dropped++
			n.logger.Warn("dropping malformed log entry",
				zap.Error(err),
				zap.String("tx_hash", entry.TxHash.Hex()),
				zap.Uint64("block_number", entry.BlockNumber),
				zap.Uint("log_index", entry.Index),
			)
			continue
		}

		if _, ok := seen[entry.TxHash]; !ok {
			seen[entry.TxHash] = struct{}{}
			hashes = append(hashes, entry.TxHash)
		}
		events = append(events, event)
	}

	return hashes, events, dropped
}

func decodeTransfer(entry types.Log) (model.TransferEvent, error) {
	if len(entry.Topics) < 3 || entry.Topics[0] != TransferTopic {
		return model.TransferEvent{}, fmt.Errorf("not a transfer log: %d topics", len(entry.Topics))
	}

	event := model.TransferEvent{
		TxHash:       entry.TxHash.Hex(),
		LogIndex:     uint64(entry.Index),
		BlockNumber:  entry.BlockNumber,
		TokenAddress: entry.Address.Hex(),
		From:         common.BytesToAddress(entry.Topics[1].Bytes()).Hex(),
		To:           common.BytesToAddress(entry.Topics[2].Bytes()).Hex(),
	}

	switch len(entry.Topics) {
	case 3:
		// ERC20: value in the data word.
		if len(entry.Data) != 32 {
			return model.TransferEvent{}, fmt.Errorf("erc20 transfer data is %d bytes, want 32", len(entry.Data))
		}
		event.Value = new(big.Int).SetBytes(entry.Data).String()
	case 4:
		// ERC721: tokenId indexed, no data.
		if len(entry.Data) != 0 {
			return model.TransferEvent{}, fmt.Errorf("erc721 transfer has %d data bytes, want 0", len(entry.Data))
		}
		event.TokenID = new(big.Int).SetBytes(entry.Topics[3].Bytes()).String()
	default:
		return model.TransferEvent{}, fmt.Errorf("unexpected topic count %d", len(entry.Topics))
	}

	return event, nil
}
