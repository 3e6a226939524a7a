// Package ideal implements the Ideal dispatcher (C6, §4.4): a reference
// model with infinite bandwidth that accepts every transaction and
// completes it exactly IdealMemoryLatency cycles after admission.
package ideal

import (
	"fmt"

	"github.com/rcolburn/memsim/internal/config"
	"github.com/rcolburn/memsim/internal/interfaces"
	"github.com/rcolburn/memsim/internal/txn"
)

// entry is one in-flight transaction waiting out its fixed latency.
type entry struct {
	reqID      uint64
	a1         uint64
	op         txn.Op
	addedCycle uint64
}

// Dispatcher is the Ideal dispatcher: accept-always admission, a flat
// buffer of in-flight entries, and a per-tick scan that fires callbacks
// once an entry's latency has elapsed (§4.4).
type Dispatcher struct {
	cfg config.Config
	log interfaces.Logger
	obs interfaces.Observer

	onRead  func(addr uint64)
	onWrite func(addr uint64)

	clk       uint64
	nextReqID uint64
	buf       []entry

	completions map[string]int
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...any) {}
func (noOpLogger) Info(string, ...any)  {}
func (noOpLogger) Warn(string, ...any)  {}
func (noOpLogger) Error(string, ...any) {}

type noOpObserver struct{}

func (noOpObserver) ObserveCompletion(interfaces.CompletionKind, uint64) {}
func (noOpObserver) ObserveCiMComplete(string, uint64)                   {}
func (noOpObserver) ObserveQueueDepth(string, int)                       {}
func (noOpObserver) ObserveAge(string, int)                              {}

// New constructs an Ideal dispatcher. It has no controller collaborators:
// completion timing is entirely a function of cfg.IdealMemoryLatency
// (§4.4, §7.1 fatal if unset).
func New(cfg config.Config, log interfaces.Logger, obs interfaces.Observer) (*Dispatcher, error) {
	if err := cfg.ValidateIdeal(); err != nil {
		return nil, fmt.Errorf("ideal: %w", err)
	}
	if log == nil {
		log = noOpLogger{}
	}
	if obs == nil {
		obs = noOpObserver{}
	}
	return &Dispatcher{
		cfg:         cfg,
		log:         log,
		obs:         obs,
		completions: make(map[string]int),
	}, nil
}

// RegisterCallbacks installs the host's read/write completion handlers.
func (d *Dispatcher) RegisterCallbacks(onRead, onWrite func(addr uint64)) {
	d.onRead = onRead
	d.onWrite = onWrite
}

// WillAcceptTransaction always returns true (§4.4 "Accept always").
func (d *Dispatcher) WillAcceptTransaction(txn.Transaction) bool { return true }

func (d *Dispatcher) newReqID() uint64 {
	d.nextReqID++
	return d.nextReqID
}

// AddTransaction records t with added_cycle = clk (§4.4).
func (d *Dispatcher) AddTransaction(t txn.Transaction) (uint64, error) {
	reqID := d.newReqID()
	d.buf = append(d.buf, entry{reqID: reqID, a1: t.A1, op: t.Op, addedCycle: d.clk})
	return reqID, nil
}

// ClockTick scans the buffer for entries whose latency has elapsed and
// fires their callback, tolerating in-place removal by filtering the
// buffer in place in a single pass (§4.4).
func (d *Dispatcher) ClockTick() {
	if len(d.buf) > 0 {
		kept := d.buf[:0]
		for _, e := range d.buf {
			if d.clk-e.addedCycle >= d.cfg.IdealMemoryLatency {
				d.fire(e)
				continue
			}
			kept = append(kept, e)
		}
		d.buf = kept
	}
	d.clk++
}

func (d *Dispatcher) fire(e entry) {
	switch {
	case e.op == txn.OpRead || e.op == txn.OpCimFetch:
		if d.onRead != nil {
			d.onRead(e.a1)
		}
		d.obs.ObserveCompletion(interfaces.CompletionRead, d.clk-e.addedCycle)
	default:
		if d.onWrite != nil {
			d.onWrite(e.a1)
		}
		d.obs.ObserveCompletion(interfaces.CompletionWrite, d.clk-e.addedCycle)
	}
	d.completions[e.op.String()]++
	d.log.Debug("ideal transaction complete", "req_id", e.reqID, "type", e.op, "cycles", d.clk-e.addedCycle)
}

// PrintStats reports per-op completion counts (§5 "Supplemented
// features").
func (d *Dispatcher) PrintStats() string {
	out := "ideal dispatcher stats:\n"
	for name, count := range d.completions {
		out += fmt.Sprintf("  %s: count=%d\n", name, count)
	}
	return out
}

// ResetStats zeroes the accumulated completion tallies.
func (d *Dispatcher) ResetStats() {
	d.completions = make(map[string]int)
}
