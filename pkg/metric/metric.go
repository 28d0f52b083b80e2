// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the coordinator's metrics using luxfi/metric.
type Metrics struct {
	metricsInstance metrics.Metrics

	// Registry metrics
	SlotsCreated metrics.Counter

	// Ledger metrics
	BidsPlaced         metrics.Counter
	BidsRejected       metrics.CounterVec
	SettlementFailures metrics.Counter
	EscrowedTotal      metrics.Counter

	// Event log metrics
	FactsAppended metrics.Counter

	// Performance metrics
	BidLatency metrics.Histogram
}

// NewMetrics creates a new metrics instance using luxfi/metric.
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New("slotbid")

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.SlotsCreated = metricsInstance.NewCounter("registry_slots_created_total", "Total number of ad slots created")

	m.BidsPlaced = metricsInstance.NewCounter("ledger_bids_placed_total", "Total number of bids accepted")
	m.BidsRejected = metricsInstance.NewCounterVec(
		"ledger_bids_rejected_total",
		"Total number of bids rejected by reason",
		[]string{"reason"},
	)
	m.SettlementFailures = metricsInstance.NewCounter("ledger_settlement_failures_total", "Total number of aborted settlements")
	m.EscrowedTotal = metricsInstance.NewCounter("ledger_escrowed_base_units_total", "Total base units moved into escrow")

	m.FactsAppended = metricsInstance.NewCounter("eventlog_facts_appended_total", "Total facts appended to the event log")

	m.BidLatency = metricsInstance.NewHistogram(
		"ledger_bid_latency_seconds",
		"Time to process a bid placement",
		prometheus.DefBuckets,
	)

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export.
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer.
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}
