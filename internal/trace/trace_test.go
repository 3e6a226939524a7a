package trace

import (
	"strings"
	"testing"

	memsim "github.com/rcolburn/memsim"
)

func TestParseLinePlainRead(t *testing.T) {
	tr, ok, err := ParseLine("0x0040 READ 0")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if !ok {
		t.Fatal("ParseLine() ok = false, want true")
	}
	if tr.Op != memsim.OpRead || tr.A1 != 0x40 || tr.AddedCycle != 0 {
		t.Errorf("got %+v", tr)
	}
}

func TestParseLineCimAdd(t *testing.T) {
	tr, ok, err := ParseLine("0x100 CIM_ADD 0x200 0x300 5")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if !ok {
		t.Fatal("expected ok")
	}
	if tr.Op != memsim.OpCimAdd || tr.A1 != 0x100 || tr.A2 != 0x200 || tr.A3 != 0x300 || tr.AddedCycle != 5 {
		t.Errorf("got %+v", tr)
	}
}

func TestParseLineCimSwapHasNoA3(t *testing.T) {
	tr, ok, err := ParseLine("0x100 CIM_SWAP 0x200 10")
	if err != nil || !ok {
		t.Fatalf("ParseLine() = %+v, %v, %v", tr, ok, err)
	}
	if tr.A2 != 0x200 || tr.A3 != 0 {
		t.Errorf("got %+v", tr)
	}
}

func TestParseLineUnknownOpDropped(t *testing.T) {
	_, ok, err := ParseLine("0x40 WEIRDOP 0")
	if err != nil {
		t.Fatalf("ParseLine() error = %v, want nil (unknown op is silently dropped)", err)
	}
	if ok {
		t.Error("ParseLine() ok = true, want false for unknown op")
	}
}

func TestParseLineBlankAndComment(t *testing.T) {
	for _, line := range []string{"", "   ", "# a comment"} {
		_, ok, err := ParseLine(line)
		if err != nil || ok {
			t.Errorf("ParseLine(%q) = ok=%v err=%v, want ok=false err=nil", line, ok, err)
		}
	}
}

func TestScan(t *testing.T) {
	input := `0x40 READ 0
# comment
0x80 WRITE 1
0x40 WEIRDOP 2
0x100 CIM_XOR 0x200 0x300 3
`
	var got []memsim.Transaction
	err := Scan(strings.NewReader(input), func(t memsim.Transaction) error {
		got = append(got, t)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Scan() produced %d transactions, want 3", len(got))
	}
	if got[2].Op != memsim.OpCimXor {
		t.Errorf("got[2].Op = %v, want CIM_XOR", got[2].Op)
	}
}
