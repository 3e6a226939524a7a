// Package testctrl provides a deterministic fake implementing
// interfaces.Controller, used across the dispatcher test suites and cmd
// in place of a real per-channel/per-vault DRAM controller (§1
// "Out of scope": controller internals are an external collaborator with
// a named interface only). It fires every admitted transaction's
// completion exactly Latency ticks after admission, FIFO, and rejects new
// admissions once Capacity in-flight transactions are outstanding.
package testctrl

import "github.com/rcolburn/memsim/internal/interfaces"

type completion struct {
	key    uint64
	kind   interfaces.CompletionKind
	fireAt uint64
}

// Controller is a fixed-latency, bounded-capacity fake Controller.
type Controller struct {
	Capacity int
	Latency  uint64

	clk     uint64
	pending []completion

	ReadCount  int
	WriteCount int
	CiMCount   int
}

// New builds a Controller with the given capacity and fixed latency.
func New(capacity int, latency uint64) *Controller {
	return &Controller{Capacity: capacity, Latency: latency}
}

// WillAcceptTransaction reports whether fewer than Capacity transactions
// are currently in flight. addr and isWrite are unused: this fake has no
// per-address state (§1 non-goal: no functional data correctness).
func (c *Controller) WillAcceptTransaction(addr uint64, isWrite bool) bool {
	return len(c.pending) < c.Capacity
}

// AddTransaction admits a transaction, scheduling its completion Latency
// ticks from now.
func (c *Controller) AddTransaction(addr uint64, isWrite bool, isCiM bool, reqID uint64) bool {
	if len(c.pending) >= c.Capacity {
		return false
	}
	key := addr
	kind := interfaces.CompletionRead
	switch {
	case isCiM:
		kind = interfaces.CompletionCiM
		key = reqID
		c.CiMCount++
	case isWrite:
		kind = interfaces.CompletionWrite
		c.WriteCount++
	default:
		c.ReadCount++
	}
	c.pending = append(c.pending, completion{key: key, kind: kind, fireAt: c.clk + c.Latency})
	return true
}

// ReturnDoneTrans pops the earliest-admitted completion whose fireAt has
// arrived, in admission order (FIFO).
func (c *Controller) ReturnDoneTrans(clk uint64) (uint64, interfaces.CompletionKind, bool) {
	for i, comp := range c.pending {
		if comp.fireAt <= clk {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return comp.key, comp.kind, true
		}
	}
	return 0, 0, false
}

// ClockTick advances the fake's internal clock by one.
func (c *Controller) ClockTick() {
	c.clk++
}

// Pending reports the number of transactions currently in flight.
func (c *Controller) Pending() int {
	return len(c.pending)
}
