package model

// WatchedAddress is an address under scan together with its high-water mark.
// LastProcessedBlock only moves forward, and only after the corresponding
// window has been durably persisted.
type WatchedAddress struct {
	Address            string `json:"address"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
}
