package model

// TransactionRecord holds the hydrated metadata of a transaction referenced by
// at least one TransferEvent. Keyed by TxHash; existing rows are left untouched
// on re-insert.
type TransactionRecord struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	From        string `json:"from"`
	To          string `json:"to,omitempty"`
	Value       string `json:"value"`
	GasPrice    string `json:"gas_price"`
	Nonce       uint64 `json:"nonce"`
}
