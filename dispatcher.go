// Package memsim is a cycle-driven DRAM memory-system simulator core. It
// models a host submitting read/write/CiM transactions against one of
// three interchangeable dispatcher variants — JEDEC, HMC, and Ideal —
// and driving them forward one ClockTick at a time (§2).
package memsim

import (
	"fmt"
	"sync/atomic"

	"github.com/rcolburn/memsim/internal/hmc"
	"github.com/rcolburn/memsim/internal/ideal"
	"github.com/rcolburn/memsim/internal/jedec"
)

// totalChannels is the process-wide, monotonically increasing counter
// updated only at dispatcher construction (§9 "Global process state").
// It counts dispatcher instances, not decoded memory channels: the name
// carries over from the convention of tallying every memory system brought
// up in a process.
var totalChannels atomic.Uint64

// TotalChannels reports how many dispatchers have been constructed in
// this process so far, across every variant.
func TotalChannels() uint64 { return totalChannels.Load() }

// Variant names a dispatcher implementation (§6 "Polymorphic dispatcher").
type Variant int

const (
	VariantJEDEC Variant = iota
	VariantHMC
	VariantIdeal
)

func (v Variant) String() string {
	switch v {
	case VariantJEDEC:
		return "jedec"
	case VariantHMC:
		return "hmc"
	case VariantIdeal:
		return "ideal"
	default:
		return "unknown"
	}
}

// Dispatcher is a tagged variant over the three dispatcher
// implementations, sharing one capability set — willAccept, add, tick,
// registerCallbacks, printStats, resetStats (§6) — with dynamic dispatch
// at the host boundary. Each variant owns distinct internal state; no
// deep interface hierarchy is warranted for three concrete shapes.
type Dispatcher struct {
	variant Variant
	jedec   *jedec.Dispatcher
	hmc     *hmc.Dispatcher
	ideal   *ideal.Dispatcher
}

// NewJEDECDispatcher builds a Dispatcher backed by the JEDEC variant (C4).
func NewJEDECDispatcher(cfg Config, ctrls []Controller, log Logger, obs Observer) (*Dispatcher, error) {
	d, err := jedec.New(cfg, ctrls, log, obs)
	if err != nil {
		return nil, WrapError("NewJEDECDispatcher", err)
	}
	totalChannels.Add(1)
	return &Dispatcher{variant: VariantJEDEC, jedec: d}, nil
}

// NewHMCDispatcher builds a Dispatcher backed by the HMC variant (C5).
func NewHMCDispatcher(cfg Config, ctrls []Controller, log Logger, obs Observer) (*Dispatcher, error) {
	d, err := hmc.New(cfg, ctrls, log, obs)
	if err != nil {
		return nil, WrapError("NewHMCDispatcher", err)
	}
	totalChannels.Add(1)
	return &Dispatcher{variant: VariantHMC, hmc: d}, nil
}

// NewIdealDispatcher builds a Dispatcher backed by the Ideal variant (C6).
func NewIdealDispatcher(cfg Config, log Logger, obs Observer) (*Dispatcher, error) {
	d, err := ideal.New(cfg, log, obs)
	if err != nil {
		return nil, WrapError("NewIdealDispatcher", err)
	}
	totalChannels.Add(1)
	return &Dispatcher{variant: VariantIdeal, ideal: d}, nil
}

// Variant reports which implementation backs this Dispatcher.
func (d *Dispatcher) Variant() Variant { return d.variant }

func opFor(isWrite bool) Op {
	if isWrite {
		return OpWrite
	}
	return OpRead
}

// WillAccept is the raw-address admission check (§6 Host API).
func (d *Dispatcher) WillAccept(addr uint64, isWrite bool) bool {
	return d.WillAcceptTransaction(Transaction{Op: opFor(isWrite), A1: addr})
}

// Add is the raw-address submission call (§6 Host API).
func (d *Dispatcher) Add(addr uint64, isWrite bool) (bool, error) {
	_, err := d.AddTransaction(Transaction{Op: opFor(isWrite), A1: addr})
	return err == nil, err
}

// WillAcceptTransaction reports whether t could be admitted right now.
func (d *Dispatcher) WillAcceptTransaction(t Transaction) bool {
	switch d.variant {
	case VariantJEDEC:
		return d.jedec.WillAcceptTransaction(t)
	case VariantHMC:
		return d.hmc.WillAcceptTransaction(t)
	case VariantIdeal:
		return d.ideal.WillAcceptTransaction(t)
	default:
		return false
	}
}

// AddTransaction submits t, already approved by a prior WillAcceptTransaction
// call in the same tick (§5, §7.2). It returns the dispatcher-assigned
// req_id where one exists (JEDEC CiM ops, Ideal); HMC ops report 0, since
// HMC's req_id is purely internal bookkeeping not surfaced to the host.
// A transaction the backing variant would not accept is rejected with
// ErrCodeAdmissionViolation, or ErrCodeUnknownOp when its Op is not one of
// the defined ops.
func (d *Dispatcher) AddTransaction(t Transaction) (uint64, error) {
	if !d.WillAcceptTransaction(t) {
		if t.Op < OpRead || t.Op > OpCimSwap {
			return 0, NewError("AddTransaction", ErrCodeUnknownOp, fmt.Sprintf("unknown op %v", t.Op))
		}
		return 0, NewError("AddTransaction", ErrCodeAdmissionViolation, fmt.Sprintf("add called without a successful willAccept for %s", t))
	}
	switch d.variant {
	case VariantJEDEC:
		reqID, ok, err := d.jedec.AddTransaction(t)
		if !ok {
			return 0, WrapError("AddTransaction", err)
		}
		return reqID, nil
	case VariantHMC:
		ok, err := d.hmc.AddTransaction(t)
		if !ok {
			return 0, WrapError("AddTransaction", err)
		}
		return 0, nil
	case VariantIdeal:
		reqID, err := d.ideal.AddTransaction(t)
		if err != nil {
			return 0, WrapError("AddTransaction", err)
		}
		return reqID, nil
	default:
		return 0, NewError("AddTransaction", ErrCodeUnknownOp, "dispatcher has no backing variant")
	}
}

// RegisterCallbacks installs the host's read/write completion handlers
// (§6 Host API).
func (d *Dispatcher) RegisterCallbacks(onRead, onWrite func(addr uint64)) {
	switch d.variant {
	case VariantJEDEC:
		d.jedec.RegisterCallbacks(onRead, onWrite)
	case VariantHMC:
		d.hmc.RegisterCallbacks(onRead, onWrite)
	case VariantIdeal:
		d.ideal.RegisterCallbacks(onRead, onWrite)
	}
}

// ClockTick advances the dispatcher by one tick (§6 Host API "tick").
func (d *Dispatcher) ClockTick() {
	switch d.variant {
	case VariantJEDEC:
		d.jedec.ClockTick()
	case VariantHMC:
		d.hmc.ClockTick()
	case VariantIdeal:
		d.ideal.ClockTick()
	}
}

// PrintStats reports the backing variant's accumulated stats (§6 Host
// API, §5 "Supplemented features").
func (d *Dispatcher) PrintStats() string {
	switch d.variant {
	case VariantJEDEC:
		return d.jedec.PrintStats()
	case VariantHMC:
		return d.hmc.PrintStats()
	case VariantIdeal:
		return d.ideal.PrintStats()
	default:
		return fmt.Sprintf("dispatcher: unknown variant %d", d.variant)
	}
}

// ResetStats zeroes the backing variant's accumulated stats.
func (d *Dispatcher) ResetStats() {
	switch d.variant {
	case VariantJEDEC:
		d.jedec.ResetStats()
	case VariantHMC:
		d.hmc.ResetStats()
	case VariantIdeal:
		d.ideal.ResetStats()
	}
}

// LogicClk reports the HMC variant's logic-domain tick count (§8 S6); it
// is 0 for JEDEC and Ideal, which have no separate logic clock domain.
func (d *Dispatcher) LogicClk() uint64 {
	if d.variant == VariantHMC {
		return d.hmc.LogicClk()
	}
	return 0
}
