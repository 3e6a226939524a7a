// Package jedec implements the JEDEC dispatcher (C4): plain R/W passthrough
// to a single per-channel controller, plus CiM ADD/XOR/SWAP decomposition
// into staged read/compute-delay/write sub-transactions with a deferred-
// issue calendar (C7, §4.2).
package jedec

import (
	"fmt"

	"github.com/rcolburn/memsim/internal/addr"
	"github.com/rcolburn/memsim/internal/config"
	"github.com/rcolburn/memsim/internal/interfaces"
	"github.com/rcolburn/memsim/internal/txn"
)

// cimOp tracks which CiM operation a req_id belongs to.
type cimOp int

const (
	cimAdd cimOp = iota
	cimXor
	cimSwap
)

// pair is a fixed-size (A1, A2) tuple, used for SWAP's two write targets.
type pair struct{ first, second uint64 }

// Dispatcher routes plain reads/writes to the controller selected by the
// address decoder, and decomposes CiM ops into ordered sub-transactions
// against one or more controllers (§4.2).
type Dispatcher struct {
	cfg      config.Config
	decoder  addr.Decoder
	ctrls    []interfaces.Controller
	log      interfaces.Logger
	observer interfaces.Observer

	onRead  func(addr uint64)
	onWrite func(addr uint64)

	clk       uint64
	nextReqID uint64

	// CiM tracker state (C7, §3 "CiM tracker state (JEDEC path)").
	pendingSubtx   map[uint64]int
	totalCallbacks map[uint64]int
	storedA3       map[uint64]uint64
	storedPair     map[uint64]pair
	op             map[uint64]cimOp
	startClk       map[uint64]uint64
	endClk         map[uint64]uint64
	calendar       map[uint64][]uint64

	// Stats (§5 "Supplemented features": PrintStats reports CiM op counts
	// plus mean/last completion deltas, matching S2/S3's expected print
	// line).
	cimCompletions map[string]int
	cimDeltaSum    map[string]uint64
	cimLastDelta   map[string]uint64
}

// noOpLogger discards everything; used when New is called without a
// logger.
type noOpLogger struct{}

func (noOpLogger) Debug(string, ...any) {}
func (noOpLogger) Info(string, ...any)  {}
func (noOpLogger) Warn(string, ...any)  {}
func (noOpLogger) Error(string, ...any) {}

// noOpObserver discards everything; used when New is called without an
// observer.
type noOpObserver struct{}

func (noOpObserver) ObserveCompletion(interfaces.CompletionKind, uint64) {}
func (noOpObserver) ObserveCiMComplete(string, uint64)                   {}
func (noOpObserver) ObserveQueueDepth(string, int)                       {}
func (noOpObserver) ObserveAge(string, int)                              {}

// New constructs a JEDEC dispatcher over one controller per channel. The
// number of controllers must equal cfg.Channels (§7.1 configuration/fatal
// if not).
func New(cfg config.Config, ctrls []interfaces.Controller, log interfaces.Logger, observer interfaces.Observer) (*Dispatcher, error) {
	if err := cfg.ValidateJEDEC(); err != nil {
		return nil, fmt.Errorf("jedec: %w", err)
	}
	if len(ctrls) != cfg.Channels {
		return nil, fmt.Errorf("jedec: got %d controllers, want %d channels", len(ctrls), cfg.Channels)
	}
	if log == nil {
		log = noOpLogger{}
	}
	if observer == nil {
		observer = noOpObserver{}
	}
	return &Dispatcher{
		cfg:            cfg,
		decoder:        addr.NewDecoder(cfg.ShiftBits, cfg.ChPos, cfg.ChMask),
		ctrls:          ctrls,
		log:            log,
		observer:       observer,
		pendingSubtx:   make(map[uint64]int),
		totalCallbacks: make(map[uint64]int),
		storedA3:       make(map[uint64]uint64),
		storedPair:     make(map[uint64]pair),
		op:             make(map[uint64]cimOp),
		startClk:       make(map[uint64]uint64),
		endClk:         make(map[uint64]uint64),
		calendar:       make(map[uint64][]uint64),
		cimCompletions: make(map[string]int),
		cimDeltaSum:    make(map[string]uint64),
		cimLastDelta:   make(map[string]uint64),
	}, nil
}

// RegisterCallbacks installs the host's read/write completion handlers
// (§6 Host API).
func (d *Dispatcher) RegisterCallbacks(onRead, onWrite func(addr uint64)) {
	d.onRead = onRead
	d.onWrite = onWrite
}

func (d *Dispatcher) ctrlFor(a uint64) interfaces.Controller {
	return d.ctrls[d.decoder.Channel(a)%len(d.ctrls)]
}

// WillAcceptTransaction reports whether t could be admitted right now
// (§4.2 "Admission").
func (d *Dispatcher) WillAcceptTransaction(t txn.Transaction) bool {
	switch {
	case t.Op == txn.OpRead:
		return d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, false)
	case t.Op == txn.OpWrite || t.Op == txn.OpCimStore:
		return d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, true)
	case t.Op == txn.OpCimFetch:
		return d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, false)
	case t.Op == txn.OpCimAdd || t.Op == txn.OpCimXor:
		return d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, false) &&
			d.ctrlFor(t.A2).WillAcceptTransaction(t.A2, false) &&
			d.ctrlFor(t.A3).WillAcceptTransaction(t.A3, true)
	case t.Op == txn.OpCimSwap:
		return d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, false) &&
			d.ctrlFor(t.A1).WillAcceptTransaction(t.A1, true) &&
			d.ctrlFor(t.A2).WillAcceptTransaction(t.A2, false) &&
			d.ctrlFor(t.A2).WillAcceptTransaction(t.A2, true)
	default:
		return false
	}
}

// AddTransaction admits t, re-checking WillAcceptTransaction per the
// assertion-backed admission contract (§7.2). An op with no recognized
// classification fails that re-check (WillAcceptTransaction reports false
// for it), so it returns false with an error rather than panicking (§9
// open question 4).
func (d *Dispatcher) AddTransaction(t txn.Transaction) (uint64, bool, error) {
	if !d.WillAcceptTransaction(t) {
		return 0, false, fmt.Errorf("jedec: admission violation: add called without a successful willAccept for %s", t)
	}

	switch t.Op {
	case txn.OpRead:
		d.ctrlFor(t.A1).AddTransaction(t.A1, false, false, 0)
		return 0, true, nil
	case txn.OpWrite:
		d.ctrlFor(t.A1).AddTransaction(t.A1, true, false, 0)
		return 0, true, nil
	case txn.OpCimFetch:
		reqID := d.submitSingle(t.A1, false)
		return reqID, true, nil
	case txn.OpCimStore:
		reqID := d.submitSingle(t.A1, true)
		return reqID, true, nil
	case txn.OpCimAdd:
		reqID := d.submitAddXor(t, cimAdd)
		return reqID, true, nil
	case txn.OpCimXor:
		reqID := d.submitAddXor(t, cimXor)
		return reqID, true, nil
	case txn.OpCimSwap:
		reqID := d.submitSwap(t)
		return reqID, true, nil
	default:
		return 0, false, fmt.Errorf("jedec: unknown op %v", t.Op)
	}
}

func (d *Dispatcher) newReqID() uint64 {
	d.nextReqID++
	return d.nextReqID
}

// submitSingle handles CIM_FETCH/CIM_STORE: a single tagged sub-transaction
// with no deferred phase.
func (d *Dispatcher) submitSingle(a uint64, isWrite bool) uint64 {
	reqID := d.newReqID()
	d.pendingSubtx[reqID] = 1
	d.totalCallbacks[reqID] = 1
	d.startClk[reqID] = d.clk
	d.ctrlFor(a).AddTransaction(a, isWrite, true, reqID)
	return reqID
}

// submitAddXor implements "Submission (ADD/XOR)" (§4.2).
func (d *Dispatcher) submitAddXor(t txn.Transaction, op cimOp) uint64 {
	reqID := d.newReqID()
	d.ctrlFor(t.A1).AddTransaction(t.A1, false, true, reqID)
	d.ctrlFor(t.A2).AddTransaction(t.A2, false, true, reqID)
	d.pendingSubtx[reqID] = 2
	d.totalCallbacks[reqID] = 2
	d.storedA3[reqID] = t.A3
	d.op[reqID] = op
	d.startClk[reqID] = d.clk
	return reqID
}

// submitSwap implements "Submission (SWAP)" (§4.2).
func (d *Dispatcher) submitSwap(t txn.Transaction) uint64 {
	reqID := d.newReqID()
	d.ctrlFor(t.A1).AddTransaction(t.A1, false, true, reqID)
	d.ctrlFor(t.A2).AddTransaction(t.A2, false, true, reqID)
	d.pendingSubtx[reqID] = 2
	d.totalCallbacks[reqID] = 2
	d.storedPair[reqID] = pair{t.A1, t.A2}
	d.op[reqID] = cimSwap
	d.startClk[reqID] = d.clk
	return reqID
}

// ClockTick advances the dispatcher by one cycle: deferred issue, then
// completion pump, then every controller's own tick (§2 "Control flow per
// tick").
func (d *Dispatcher) ClockTick() {
	d.issueDeferred()
	d.pumpCompletions()
	for _, c := range d.ctrls {
		c.ClockTick()
	}
	d.clk++
}

// issueDeferred implements "Deferred issuer" (§4.2): for every req_id
// scheduled in calendar[clk], issue its write phase(s).
func (d *Dispatcher) issueDeferred() {
	ids, ok := d.calendar[d.clk]
	if !ok {
		return
	}
	delete(d.calendar, d.clk)
	for _, reqID := range ids {
		switch d.op[reqID] {
		case cimAdd, cimXor:
			a3 := d.storedA3[reqID]
			d.ctrlFor(a3).AddTransaction(a3, true, true, reqID)
			d.pendingSubtx[reqID] = 1
		case cimSwap:
			p := d.storedPair[reqID]
			d.ctrlFor(p.first).AddTransaction(p.first, true, true, reqID)
			d.ctrlFor(p.second).AddTransaction(p.second, true, true, reqID)
			d.pendingSubtx[reqID] = 2
		}
	}
}

// pumpCompletions implements "Completion pump" (§4.2): drain every
// controller's ReturnDoneTrans queue for this tick.
func (d *Dispatcher) pumpCompletions() {
	for _, c := range d.ctrls {
	drain:
		for {
			key, kind, ok := c.ReturnDoneTrans(d.clk)
			if !ok {
				break
			}
			switch kind {
			case interfaces.CompletionRead:
				if d.onRead != nil {
					d.onRead(key)
				}
				d.observer.ObserveCompletion(kind, 0)
			case interfaces.CompletionWrite:
				if d.onWrite != nil {
					d.onWrite(key)
				}
				d.observer.ObserveCompletion(kind, 0)
			case interfaces.CompletionCiM:
				d.pendingSubtx[key]--
				if d.pendingSubtx[key] <= 0 {
					d.cimComplete(key)
				} else {
					break drain
				}
			}
		}
	}
}

// cimComplete implements "CiM_Complete(req_id) state transitions" (§4.2).
func (d *Dispatcher) cimComplete(reqID uint64) {
	switch d.totalCallbacks[reqID] {
	case 2:
		delay := d.delayFor(d.op[reqID])
		fireAt := d.clk + delay
		d.calendar[fireAt] = append(d.calendar[fireAt], reqID)
		d.totalCallbacks[reqID] = 1
	case 1:
		d.endClk[reqID] = d.clk
		d.totalCallbacks[reqID] = 0
		d.recordCimTerminal(reqID)
	}
}

func (d *Dispatcher) delayFor(op cimOp) uint64 {
	switch op {
	case cimAdd:
		return d.cfg.CiMAddDelay
	case cimXor:
		return d.cfg.CiMXorDelay
	default:
		return d.cfg.CiMSwapDelay
	}
}

func (d *Dispatcher) opName(op cimOp) string {
	switch op {
	case cimAdd:
		return "CiM_Add"
	case cimXor:
		return "CiM_Xor"
	default:
		return "CiM_Swap"
	}
}

// recordCimTerminal logs and tallies a terminal CiM completion, matching
// the expected print line shape from S2/S3 (req_id, type, cycle delta).
func (d *Dispatcher) recordCimTerminal(reqID uint64) {
	name := d.opName(d.op[reqID])
	delta := d.endClk[reqID] - d.startClk[reqID]

	d.cimCompletions[name]++
	d.cimDeltaSum[name] += delta
	d.cimLastDelta[name] = delta
	d.observer.ObserveCiMComplete(name, delta)

	d.log.Info("cim transaction complete", "req_id", reqID, "type", name, "cycles", delta)
}

// PrintStats reports CiM op counts and mean/last completion deltas per op
// (§5 "Supplemented features").
func (d *Dispatcher) PrintStats() string {
	out := "jedec dispatcher stats:\n"
	for name, count := range d.cimCompletions {
		mean := d.cimDeltaSum[name] / uint64(count)
		out += fmt.Sprintf("  %s: count=%d mean_cycles=%d last_cycles=%d\n", name, count, mean, d.cimLastDelta[name])
	}
	return out
}

// ResetStats zeroes the accumulated CiM completion tallies.
func (d *Dispatcher) ResetStats() {
	d.cimCompletions = make(map[string]int)
	d.cimDeltaSum = make(map[string]uint64)
	d.cimLastDelta = make(map[string]uint64)
}
