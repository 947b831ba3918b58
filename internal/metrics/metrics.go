// Package metrics exposes prometheus instrumentation for the escrow
// engine. The Collector is an escrow.Recorder: transition events drive
// the counters, and the escrowed-funds gauge tracks the vault balance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slyt3/Covenant/internal/escrow"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covenant_transitions_total",
		Help: "Task state transitions by event type.",
	}, []string{"type"})

	burnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covenant_burned_total",
		Help: "Cumulative amount removed from circulation, in base units.",
	})

	openTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "covenant_open_tasks",
		Help: "Tasks currently in the open status.",
	})

	escrowedFunds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "covenant_escrowed_funds",
		Help: "Vault balance: active holds plus retained post fees, in base units.",
	})
)

// Collector observes committed transitions.
type Collector struct {
	ledger escrow.Ledger
	vault  string
}

// NewCollector creates a collector reading the vault balance from the
// given ledger.
func NewCollector(ledger escrow.Ledger, vault string) *Collector {
	return &Collector{ledger: ledger, vault: vault}
}

// Record implements escrow.Recorder.
func (c *Collector) Record(ev escrow.Event) error {
	transitionsTotal.WithLabelValues(string(ev.Type)).Inc()
	if ev.BurnFee > 0 {
		burnedTotal.Add(float64(ev.BurnFee))
	}

	switch ev.Type {
	case escrow.EventTaskCreated:
		openTasks.Inc()
	case escrow.EventTaskAccepted:
		openTasks.Dec()
	case escrow.EventTaskTerminated:
		// Only a cancellation leaves the open status. A task whose open
		// window lapses emits no event (expiry is lazy), so it stays
		// counted until the creator cancels it for the refund.
		if ev.Reason == escrow.ReasonCancelled {
			openTasks.Dec()
		}
	}

	escrowedFunds.Set(float64(c.ledger.BalanceOf(c.vault)))
	return nil
}
