package model

// TransferEvent is the normalized representation of an ERC20/ERC721 Transfer
// log. (TxHash, LogIndex) is the deduplication identity enforced by storage.
type TransferEvent struct {
	TxHash       string `json:"tx_hash"`
	LogIndex     uint64 `json:"log_index"`
	BlockNumber  uint64 `json:"block_number"`
	TokenAddress string `json:"token_address"`
	From         string `json:"from"`
	To           string `json:"to"`
	// Value is a decimal string for ERC20 transfers, empty for ERC721.
	Value string `json:"value,omitempty"`
	// TokenID is a decimal string for ERC721 transfers, empty for ERC20.
	TokenID string `json:"token_id,omitempty"`
}

// Key returns the composite identity of the event.
func (e TransferEvent) Key() EventKey {
	return EventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// EventKey identifies a TransferEvent in storage.
type EventKey struct {
	TxHash   string
	LogIndex uint64
}
