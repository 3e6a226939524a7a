// Package hmc implements the HMC dispatcher (C5): a two-level link↔quad↔
// vault crossbar with bounded per-stage queues, age-based arbitration,
// flit-accounting bandwidth draining, and a dual clock domain bridging a
// fast logic clock to a slower DRAM clock (§4.3).
package hmc

import (
	"fmt"

	"github.com/rcolburn/memsim/internal/addr"
	"github.com/rcolburn/memsim/internal/config"
	"github.com/rcolburn/memsim/internal/constants"
	"github.com/rcolburn/memsim/internal/interfaces"
	"github.com/rcolburn/memsim/internal/packet"
	"github.com/rcolburn/memsim/internal/txn"
	"github.com/rcolburn/memsim/internal/xbar"
)

type pair struct{ first, second uint64 }

// Dispatcher is the HMC crossbar dispatcher (§3 "HMC crossbar state").
type Dispatcher struct {
	cfg     config.Config
	decoder addr.Decoder
	ctrls   []interfaces.Controller
	log     interfaces.Logger
	obs     interfaces.Observer

	onRead  func(addr uint64)
	onWrite func(addr uint64)

	linkReqQ  []*xbar.Queue[*packet.Request]
	linkRespQ []*xbar.Queue[*packet.Response]
	quadReqQ  [4]*xbar.Queue[*packet.Request]
	quadRespQ [4]*xbar.Queue[*packet.Response]

	linkBusy []int
	quadBusy [4]int
	linkAge  []int
	quadAge  [4]int

	nextLink   int
	respLookup map[uint64]*packet.Response

	reqIDCounter uint64

	// CiM bookkeeping (§4.3 InsertReqToDRAM/VaultCallback).
	cimPending     map[uint64]int    // remaining sub-tx callbacks in the current phase
	cimOpName      map[uint64]string // for stats/logging
	cimStartClk    map[uint64]uint64
	swapPhaseReads map[uint64]bool // true while a SWAP req_id is still awaiting its two reads
	swapAddrs      map[uint64]pair

	dramClk, logicClk                   uint64
	dramPs, logicPs, psPerDram, psPerLogic uint64

	cimCompletions map[string]int
	cimDeltaSum    map[string]uint64
	cimLastDelta   map[string]uint64
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

// New constructs an HMC dispatcher with cfg.NumLinks links, 4 fixed
// quadrants, and one controller per vault in ctrls (§7.1: a non-HMC
// config is a fatal configuration error).
func New(cfg config.Config, ctrls []interfaces.Controller, log interfaces.Logger, obs interfaces.Observer) (*Dispatcher, error) {
	if err := cfg.ValidateHMC(); err != nil {
		return nil, fmt.Errorf("hmc: %w", err)
	}
	if len(ctrls) == 0 {
		return nil, fmt.Errorf("hmc: at least one vault controller required")
	}
	if log == nil {
		log = noOpLogger{}
	}
	if obs == nil {
		obs = noOpObserver{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		decoder: addr.NewDecoder(cfg.ShiftBits, cfg.ChPos, cfg.ChMask),
		ctrls:   ctrls,
		log:     log,
		obs:     obs,

		linkReqQ:  make([]*xbar.Queue[*packet.Request], cfg.NumLinks),
		linkRespQ: make([]*xbar.Queue[*packet.Response], cfg.NumLinks),
		linkBusy:  make([]int, cfg.NumLinks),
		linkAge:   make([]int, cfg.NumLinks),

		respLookup: make(map[uint64]*packet.Response),

		cimPending:     make(map[uint64]int),
		cimOpName:      make(map[uint64]string),
		cimStartClk:    make(map[uint64]uint64),
		swapPhaseReads: make(map[uint64]bool),
		swapAddrs:      make(map[uint64]pair),

		cimCompletions: make(map[string]int),
		cimDeltaSum:    make(map[string]uint64),
		cimLastDelta:   make(map[string]uint64),

		psPerDram:  constants.DefaultPsPerDRAM,
		psPerLogic: cfg.PsPerLogic(),
	}
	for l := 0; l < cfg.NumLinks; l++ {
		d.linkReqQ[l] = xbar.NewQueue[*packet.Request](cfg.XbarQueueDepth)
		d.linkRespQ[l] = xbar.NewQueue[*packet.Response](cfg.XbarQueueDepth)
	}
	for q := 0; q < 4; q++ {
		d.quadReqQ[q] = xbar.NewQueue[*packet.Request](cfg.XbarQueueDepth)
		d.quadRespQ[q] = xbar.NewQueue[*packet.Response](cfg.XbarQueueDepth)
	}
	return d, nil
}

// RegisterCallbacks installs the host's read/write completion handlers.
func (d *Dispatcher) RegisterCallbacks(onRead, onWrite func(addr uint64)) {
	d.onRead = onRead
	d.onWrite = onWrite
}

// nFor returns the number of link_req_q slots a Transaction's kind must
// reserve on admission (§4.3 "Admission").
func nFor(op txn.Op) int {
	switch op {
	case txn.OpCimAdd, txn.OpCimXor:
		return 3
	case txn.OpCimSwap:
		return 4
	default:
		return 1
	}
}

// WillAcceptTransaction reports whether some link's queue has room for
// the N additional packets t's kind requires (§4.3 "Admission").
func (d *Dispatcher) WillAcceptTransaction(t txn.Transaction) bool {
	n := nFor(t.Op)
	for _, q := range d.linkReqQ {
		if q.Room(n) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) buildRequest(t txn.Transaction) *packet.Request {
	req := packet.GetRequest()
	req.A1, req.A2, req.A3 = t.A1, t.A2, t.A3

	switch t.Op {
	case txn.OpRead:
		req.Kind = constants.ReadKindForBlockSize(d.cfg.BlockSize)
		req.IsRead = true
	case txn.OpWrite:
		req.Kind = constants.WriteKindForBlockSize(d.cfg.BlockSize)
		req.IsWrite = true
	case txn.OpCimFetch:
		req.Kind = constants.ReqCimFetch
		req.IsRead = true
	case txn.OpCimStore:
		req.Kind = constants.ReqCimStore
		req.IsWrite = true
	case txn.OpCimAdd:
		req.Kind = constants.ReqCimAdd
		req.IsRead, req.IsWrite = true, true
	case txn.OpCimXor:
		req.Kind = constants.ReqCimXor
		req.IsRead, req.IsWrite = true, true
	case txn.OpCimSwap:
		req.Kind = constants.ReqCimSwap
		req.IsRead, req.IsWrite = true, true
	}
	req.Flits = constants.ReqFlits(req.Kind)
	req.Vault = d.decoder.Channel(t.A1) % len(d.ctrls)
	req.Quad = packet.QuadOf(req.Vault)
	return req
}

// AddTransaction builds an HMCRequest for t and inserts it at next_link,
// probing subsequent links round-robin on failure (§4.3 "Submission").
func (d *Dispatcher) AddTransaction(t txn.Transaction) (bool, error) {
	if !d.WillAcceptTransaction(t) {
		return false, fmt.Errorf("hmc: admission violation: add called without a successful willAccept for %s", t)
	}

	req := d.buildRequest(t)
	n := len(d.linkReqQ)
	inserted := -1
	for i := 0; i < n; i++ {
		l := (d.nextLink + i) % n
		if d.linkReqQ[l].Push(req) {
			inserted = l
			break
		}
	}
	if inserted < 0 {
		packet.PutRequest(req)
		return false, fmt.Errorf("hmc: no link had room despite willAccept for %s", t)
	}
	req.Link = inserted

	if !req.Kind.IsCiM() {
		resp := packet.GetResponse()
		resp.RespID = t.A1
		resp.Link = inserted
		resp.Quad = req.Quad
		if t.Op == txn.OpRead {
			resp.Kind = constants.RespRD
		} else {
			resp.Kind = constants.RespWR
		}
		resp.Flits = constants.RespFlits(resp.Kind, req.Flits)
		d.respLookup[t.A1] = resp
	}

	d.linkAge[inserted] = 1
	d.nextLink = (inserted + 1) % n
	return true, nil
}

// ClockTick interleaves the slow DRAM clock domain with the faster logic
// clock domain (§4.3 "Per-tick top loop").
func (d *Dispatcher) ClockTick() {
	if d.dramPs == d.logicPs {
		d.drainResponses()
		d.dramClockTick()
		d.drainRequests()
		d.logicPs += d.psPerLogic
		d.logicClk++
	} else {
		d.dramClockTick()
	}
	for d.logicPs < d.dramPs+d.psPerDram {
		d.drainResponses()
		d.drainRequests()
		d.logicPs += d.psPerLogic
		d.logicClk++
	}
	d.dramPs += d.psPerDram
}

// LogicClk reports the current logic-domain tick count, for tests and
// stats reporting.
func (d *Dispatcher) LogicClk() uint64 { return d.logicClk }

// dramClockTick advances every vault controller by one DRAM cycle,
// draining its completions through VaultCallback first.
func (d *Dispatcher) dramClockTick() {
	for vault, ctrl := range d.ctrls {
		for {
			key, kind, ok := ctrl.ReturnDoneTrans(d.dramClk)
			if !ok {
				break
			}
			d.vaultCallback(vault, key, kind)
		}
	}
	for _, ctrl := range d.ctrls {
		ctrl.ClockTick()
	}
	d.dramClk++
}

// canAcceptAtVault implements the per-kind (reads, writes) admission check
// from "DrainRequests" step 1.
func canAcceptAtVault(ctrl interfaces.Controller, pkt *packet.Request) bool {
	switch pkt.Kind {
	case constants.ReqCimAdd, constants.ReqCimXor:
		return ctrl.WillAcceptTransaction(pkt.A1, false) &&
			ctrl.WillAcceptTransaction(pkt.A2, false) &&
			ctrl.WillAcceptTransaction(pkt.A3, true)
	case constants.ReqCimSwap:
		return ctrl.WillAcceptTransaction(pkt.A1, false) &&
			ctrl.WillAcceptTransaction(pkt.A2, false) &&
			ctrl.WillAcceptTransaction(pkt.A1, true) &&
			ctrl.WillAcceptTransaction(pkt.A2, true)
	case constants.ReqCimFetch:
		return ctrl.WillAcceptTransaction(pkt.A1, false)
	case constants.ReqCimStore:
		return ctrl.WillAcceptTransaction(pkt.A1, true)
	default:
		return ctrl.WillAcceptTransaction(pkt.A1, pkt.IsWrite)
	}
}

// drainRequests implements "DrainRequests (link -> quad -> vault)" (§4.3).
func (d *Dispatcher) drainRequests() {
	for q := 0; q < 4; q++ {
		pkt, ok := d.quadReqQ[q].Peek()
		if !ok {
			continue
		}
		if pkt.ExitTime > d.logicClk {
			continue
		}
		ctrl := d.ctrls[pkt.Vault]
		if canAcceptAtVault(ctrl, pkt) {
			d.insertReqToDRAM(pkt)
			d.quadReqQ[q].Pop()
			packet.PutRequest(pkt)
		}
	}

	for q := 0; q < 4; q++ {
		d.quadBusy[q] -= constants.XbarBandwidth
		if d.quadBusy[q] < 0 {
			d.quadBusy[q] = 0
		}
	}

	order := xbar.BuildAgeOrder(d.linkAge, int(d.logicClk)%len(d.linkAge))
	for _, l := range order {
		pkt, ok := d.linkReqQ[l].Peek()
		if !ok {
			d.linkAge[l] = 0
			continue
		}
		dest := pkt.Quad
		if d.quadReqQ[dest].Room(1) && d.quadBusy[dest] <= 0 {
			d.linkReqQ[l].Pop()
			d.quadReqQ[dest].Push(pkt)
			d.quadBusy[dest] = pkt.Flits
			pkt.ExitTime = d.logicClk + uint64(pkt.Flits)
			if _, more := d.linkReqQ[l].Peek(); more {
				d.linkAge[l] = 1
			} else {
				d.linkAge[l] = 0
			}
		} else {
			d.linkAge[l]++
		}
		d.obs.ObserveAge("link", d.linkAge[l])
	}
}

// drainResponses implements "DrainResponses (vault -> quad -> link ->
// host)" (§4.3).
func (d *Dispatcher) drainResponses() {
	for l := 0; l < len(d.linkRespQ); l++ {
		resp, ok := d.linkRespQ[l].Peek()
		if !ok {
			continue
		}
		if resp.ExitTime > d.logicClk {
			continue
		}
		d.linkRespQ[l].Pop()
		switch resp.Kind {
		case constants.RespRD:
			if d.onRead != nil {
				d.onRead(resp.RespID)
			}
			d.obs.ObserveCompletion(interfaces.CompletionRead, 0)
		case constants.RespWR:
			if d.onWrite != nil {
				d.onWrite(resp.RespID)
			}
			d.obs.ObserveCompletion(interfaces.CompletionWrite, 0)
		}
		packet.PutResponse(resp)
	}

	for l := range d.linkBusy {
		d.linkBusy[l] -= constants.XbarBandwidth
		if d.linkBusy[l] < 0 {
			d.linkBusy[l] = 0
		}
	}

	order := xbar.BuildAgeOrder(d.quadAge[:], int(d.logicClk)%4)
	for _, q := range order {
		resp, ok := d.quadRespQ[q].Peek()
		if !ok {
			d.quadAge[q] = 0
			continue
		}
		dest := resp.Link
		if d.linkRespQ[dest].Room(1) && d.linkBusy[dest] <= 0 {
			d.quadRespQ[q].Pop()
			d.linkRespQ[dest].Push(resp)
			d.linkBusy[dest] = resp.Flits
			resp.ExitTime = d.logicClk + uint64(resp.Flits)
			if _, more := d.quadRespQ[q].Peek(); more {
				d.quadAge[q] = 1
			} else {
				d.quadAge[q] = 0
			}
		} else {
			d.quadAge[q]++
		}
	}
}

func (d *Dispatcher) newReqID() uint64 {
	d.reqIDCounter++
	return d.reqIDCounter
}

// insertReqToDRAM decomposes a drained HMC request packet into vault
// transactions (§4.3 "InsertReqToDRAM").
func (d *Dispatcher) insertReqToDRAM(pkt *packet.Request) {
	ctrl := d.ctrls[pkt.Vault]

	switch pkt.Kind {
	case constants.ReqCimFetch:
		reqID := d.newReqID()
		ctrl.AddTransaction(pkt.A1, false, true, reqID)
		d.cimPending[reqID] = 1
		d.cimOpName[reqID] = "CiM_Fetch"
		d.cimStartClk[reqID] = d.dramClk
	case constants.ReqCimStore:
		reqID := d.newReqID()
		ctrl.AddTransaction(pkt.A1, true, true, reqID)
		d.cimPending[reqID] = 1
		d.cimOpName[reqID] = "CiM_Store"
		d.cimStartClk[reqID] = d.dramClk
	case constants.ReqCimAdd, constants.ReqCimXor:
		reqID := d.newReqID()
		ctrl.AddTransaction(pkt.A1, false, true, reqID)
		ctrl.AddTransaction(pkt.A2, false, true, reqID)
		ctrl.AddTransaction(pkt.A3, true, true, reqID)
		d.cimPending[reqID] = 3
		if pkt.Kind == constants.ReqCimAdd {
			d.cimOpName[reqID] = "CiM_Add"
		} else {
			d.cimOpName[reqID] = "CiM_Xor"
		}
		d.cimStartClk[reqID] = d.dramClk
	case constants.ReqCimSwap:
		reqID := d.newReqID()
		ctrl.AddTransaction(pkt.A1, false, true, reqID)
		ctrl.AddTransaction(pkt.A2, false, true, reqID)
		d.cimPending[reqID] = 2
		d.swapPhaseReads[reqID] = true
		d.swapAddrs[reqID] = pair{pkt.A1, pkt.A2}
		d.cimOpName[reqID] = "CiM_Swap"
		d.cimStartClk[reqID] = d.dramClk
	default:
		ctrl.AddTransaction(pkt.A1, pkt.IsWrite, false, 0)
	}
}

// vaultCallback routes one controller completion (§4.3 "VaultCallback"; §9
// open questions 1-2: every completion — read, write, or CiM — is routed
// through this single entry point, disambiguated by kind).
func (d *Dispatcher) vaultCallback(vault int, key uint64, kind interfaces.CompletionKind) {
	switch kind {
	case interfaces.CompletionRead, interfaces.CompletionWrite:
		resp, ok := d.respLookup[key]
		if !ok {
			return
		}
		delete(d.respLookup, key)
		d.quadRespQ[resp.Quad].Push(resp)
		d.quadAge[resp.Quad] = 1
	case interfaces.CompletionCiM:
		d.cimVaultCallback(vault, key)
	}
}

// cimVaultCallback implements the CiM branch of VaultCallback: SWAP defers
// its writes until both reads land; every other CiM kind is a flat
// countdown that terminates when its last sub-transaction completes.
func (d *Dispatcher) cimVaultCallback(vault int, reqID uint64) {
	remaining, ok := d.cimPending[reqID]
	if !ok {
		return
	}
	remaining--
	d.cimPending[reqID] = remaining
	if remaining > 0 {
		return
	}

	if d.swapPhaseReads[reqID] {
		delete(d.swapPhaseReads, reqID)
		addrs := d.swapAddrs[reqID]
		ctrl := d.ctrls[vault]
		ctrl.AddTransaction(addrs.first, true, true, reqID)
		ctrl.AddTransaction(addrs.second, true, true, reqID)
		d.cimPending[reqID] = 2
		return
	}

	delete(d.cimPending, reqID)
	name := d.cimOpName[reqID]
	delta := d.dramClk - d.cimStartClk[reqID]
	d.cimCompletions[name]++
	d.cimDeltaSum[name] += delta
	d.cimLastDelta[name] = delta
	d.obs.ObserveCiMComplete(name, delta)
	d.log.Info("cim transaction complete", "req_id", reqID, "type", name, "cycles", delta)
}

// PrintStats reports per-link/per-quad queue occupancy and CiM completion
// tallies (§5 "Supplemented features").
func (d *Dispatcher) PrintStats() string {
	out := "hmc dispatcher stats:\n"
	for l, q := range d.linkReqQ {
		out += fmt.Sprintf("  link[%d] req_depth=%d resp_depth=%d\n", l, q.Len(), d.linkRespQ[l].Len())
	}
	for q := 0; q < 4; q++ {
		out += fmt.Sprintf("  quad[%d] req_depth=%d resp_depth=%d\n", q, d.quadReqQ[q].Len(), d.quadRespQ[q].Len())
	}
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
