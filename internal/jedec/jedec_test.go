package jedec

import (
	"testing"

	"github.com/rcolburn/memsim/internal/config"
	"github.com/rcolburn/memsim/internal/interfaces"
	"github.com/rcolburn/memsim/internal/txn"
	"github.com/rcolburn/memsim/testctrl"
)

func newTestDispatcher(t *testing.T, cfg config.Config, ctrls []interfaces.Controller) *Dispatcher {
	t.Helper()
	d, err := New(cfg, ctrls, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

// TestPlainReadRoutesToDecodedChannel encodes scenario S1: channels=2,
// shift_bits=6, ch_pos=0, ch_mask=1; 0x0040 decodes to channel 1.
func TestPlainReadRoutesToDecodedChannel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels = 2
	cfg.ShiftBits = 6
	cfg.ChPos = 0
	cfg.ChMask = 1

	c0 := testctrl.New(4, 2)
	c1 := testctrl.New(4, 2)
	d := newTestDispatcher(t, cfg, []interfaces.Controller{c0, c1})

	var reads, writes []uint64
	d.RegisterCallbacks(func(a uint64) { reads = append(reads, a) }, func(a uint64) { writes = append(writes, a) })

	tr := txn.Transaction{Op: txn.OpRead, A1: 0x0040}
	if !d.WillAcceptTransaction(tr) {
		t.Fatal("WillAcceptTransaction() = false, want true")
	}
	if _, ok, err := d.AddTransaction(tr); !ok || err != nil {
		t.Fatalf("AddTransaction() = %v, %v, want true, nil", ok, err)
	}

	if c1.Pending() != 1 || c0.Pending() != 0 {
		t.Fatalf("routed to wrong controller: c0.Pending=%d c1.Pending=%d, want c1=1", c0.Pending(), c1.Pending())
	}

	for i := 0; i < 3; i++ {
		d.ClockTick()
	}

	if len(reads) != 1 || reads[0] != 0x0040 {
		t.Errorf("reads = %v, want [0x40]", reads)
	}
	if len(writes) != 0 {
		t.Errorf("writes = %v, want none", writes)
	}
}

// TestCimAddPhaseOrdering encodes scenario S2: two reads complete, then a
// write to A3 is deferred by CiM_Add_Delay, then the op terminates.
func TestCimAddPhaseOrdering(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels = 1
	cfg.CiMAddDelay = 100

	c0 := testctrl.New(8, 2)
	d := newTestDispatcher(t, cfg, []interfaces.Controller{c0})

	tr := txn.Transaction{Op: txn.OpCimAdd, A1: 0x100, A2: 0x200, A3: 0x300}
	if !d.WillAcceptTransaction(tr) {
		t.Fatal("WillAcceptTransaction() = false, want true")
	}
	reqID, ok, err := d.AddTransaction(tr)
	if !ok || err != nil {
		t.Fatalf("AddTransaction() = %v, %v", ok, err)
	}
	if c0.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2 (two reads issued)", c0.Pending())
	}

	// Reads complete after 2 ticks; the write phase is deferred 100 more.
	for i := 0; i < 2+100+2+10; i++ {
		d.ClockTick()
	}

	if _, ok := d.endClk[reqID]; !ok {
		t.Fatalf("req_id %d never reached terminal state", reqID)
	}
	if d.endClk[reqID]-d.startClk[reqID] < cfg.CiMAddDelay {
		t.Errorf("end-start delta = %d, want >= %d", d.endClk[reqID]-d.startClk[reqID], cfg.CiMAddDelay)
	}
	if d.cimCompletions["CiM_Add"] != 1 {
		t.Errorf("cimCompletions[CiM_Add] = %d, want 1", d.cimCompletions["CiM_Add"])
	}
}

// TestCimSwapWritesBothAddresses encodes scenario S3.
func TestCimSwapWritesBothAddresses(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels = 1
	cfg.CiMSwapDelay = 50

	c0 := testctrl.New(8, 1)
	d := newTestDispatcher(t, cfg, []interfaces.Controller{c0})

	tr := txn.Transaction{Op: txn.OpCimSwap, A1: 0x100, A2: 0x200}
	reqID, ok, err := d.AddTransaction(tr)
	if !ok || err != nil {
		t.Fatalf("AddTransaction() = %v, %v", ok, err)
	}

	for i := 0; i < 1+50+1+10; i++ {
		d.ClockTick()
	}

	if _, done := d.endClk[reqID]; !done {
		t.Fatal("swap never reached terminal state")
	}
	if d.cimCompletions["CiM_Swap"] != 1 {
		t.Errorf("cimCompletions[CiM_Swap] = %d, want 1", d.cimCompletions["CiM_Swap"])
	}
	if c0.CiMCount != 4 {
		t.Errorf("CiMCount = %d, want 4 (two reads, then writes to A1 and A2)", c0.CiMCount)
	}
}

func TestAddTransactionRejectsWithoutWillAccept(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels = 1
	c0 := testctrl.New(0, 2)
	d := newTestDispatcher(t, cfg, []interfaces.Controller{c0})

	tr := txn.Transaction{Op: txn.OpRead, A1: 0x40}
	if _, ok, err := d.AddTransaction(tr); ok || err == nil {
		t.Errorf("AddTransaction() = %v, %v, want false, non-nil error", ok, err)
	}
}
