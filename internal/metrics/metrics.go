package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts scan iterations by outcome (ok, skip, transient, error).
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erc20scan_scans_total",
			Help: "Total number of scan iterations",
		},
		[]string{"outcome"},
	)

	// EventsCreated counts newly persisted transfer events.
	EventsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "erc20scan_events_created_total",
			Help: "Total number of transfer events newly persisted",
		},
	)

	// EntriesDropped counts malformed log entries dropped during normalization.
	EntriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "erc20scan_entries_dropped_total",
			Help: "Total number of malformed log entries dropped",
		},
	)

	// WindowSize tracks the current adaptive window size in blocks.
	WindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "erc20scan_window_size_blocks",
			Help: "Current adaptive scan window size in blocks",
		},
	)

	// FetchLatency tracks remote log query latency.
	FetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "erc20scan_fetch_latency_seconds",
			Help:    "Log fetch latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// ChainHead tracks the latest block reported by the node.
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "erc20scan_chain_head_block",
			Help: "Latest block number reported by the node",
		},
	)

	// ScanHead tracks the highest high-water mark across watched addresses.
	ScanHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "erc20scan_scan_head_block",
			Help: "Highest last-processed block across watched addresses",
		},
	)
)
