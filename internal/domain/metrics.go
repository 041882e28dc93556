// Package domain holds the probe's data model: connection settings, metric samples, reports and collection errors.
package domain

import "time"

// MetricType tells the reporting layer how to treat a sample.
type MetricType string

const (
	// Gauge is reported as its absolute value.
	Gauge MetricType = "gauge"
	// Counter is a monotonically increasing total reported as a rate.
	Counter MetricType = "counter"
)

// Metric names, byte-exact with what the monitoring backend expects.
const (
	RowsSelectIdx  = "rows_select_idx"
	RowsSelectScan = "rows_select_scan"
	RowsInsert     = "rows_insert"
	RowsUpdate     = "rows_update"
	RowsDelete     = "rows_delete"
	RowsTotal      = "rows_total"

	NumBackends  = "numbackends"
	XactCommit   = "xact_commit"
	XactRollback = "xact_rollback"
	XactTotal    = "xact_total"
	BlksRead     = "blks_read"
	BlksHit      = "blks_hit"

	BlksCachePct = "blks_cache_pc"
)

var nonCounterEntries = map[string]struct{}{
	NumBackends: {},
}

// KindOf classifies a column returned by the statistics queries.
func KindOf(name string) MetricType {
	if _, ok := nonCounterEntries[name]; ok {
		return Gauge
	}
	return Counter
}

// Sample is a single column value read from a statistics row.
type Sample struct {
	Name  string
	Kind  MetricType
	Value int64
}

// NewSample builds a Sample with its kind resolved from the name.
func NewSample(name string, v int64) Sample {
	return Sample{Name: name, Kind: KindOf(name), Value: v}
}

// Reading is the last absolute counter value remembered between runs.
type Reading struct {
	At    time.Time `json:"at"`
	Value int64     `json:"value"`
}
