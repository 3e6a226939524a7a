// Package trace parses the line-oriented transaction trace format (§6):
//
//	<hexAddr> <OP> [<hexAddr2>] [<hexAddr3>] <decAddedCycle>
//
// Addr2 is present iff OP is one of CIM_ADD, CIM_SWAP, CIM_XOR; Addr3 iff
// OP is CIM_ADD or CIM_XOR. A line with an unrecognized OP token is
// dropped (§7.4): ParseLine reports it with ok=false and no error, and
// Scan skips it.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rcolburn/memsim/internal/txn"
)

// opTable maps every recognized trace token to a Transaction Op, per §6.
// write/P_MEM_WR/BOFF are legacy aliases for WRITE carried over from the
// trace formats this core reads (DRAMSim-family traces use all three
// spellings interchangeably).
var opTable = map[string]txn.Op{
	"READ":      txn.OpRead,
	"WRITE":     txn.OpWrite,
	"write":     txn.OpWrite,
	"P_MEM_WR":  txn.OpWrite,
	"BOFF":      txn.OpWrite,
	"CIM_FETCH": txn.OpCimFetch,
	"CIM_STORE": txn.OpCimStore,
	"CIM_ADD":   txn.OpCimAdd,
	"CIM_XOR":   txn.OpCimXor,
	"CIM_SWAP":  txn.OpCimSwap,
}

// ParseLine parses a single trace line. ok is false if the line is blank,
// a comment (leading '#'), or its OP token is unrecognized (§7.4) — none
// of these produce an error; an unknown op is silently dropped, not
// reported.
func ParseLine(line string) (t txn.Transaction, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return txn.Transaction{}, false, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return txn.Transaction{}, false, fmt.Errorf("trace: too few fields: %q", line)
	}

	addr1, err := parseHex(fields[0])
	if err != nil {
		return txn.Transaction{}, false, fmt.Errorf("trace: bad addr %q: %w", fields[0], err)
	}

	op, known := opTable[fields[1]]
	if !known {
		// §7.4: unknown op, all flags false, caller drops it.
		return txn.Transaction{}, false, nil
	}

	rest := fields[2:]
	t = txn.Transaction{Op: op, A1: addr1}

	if op.HasA2() {
		if len(rest) < 1 {
			return txn.Transaction{}, false, fmt.Errorf("trace: %s missing addr2: %q", fields[1], line)
		}
		a2, err := parseHex(rest[0])
		if err != nil {
			return txn.Transaction{}, false, fmt.Errorf("trace: bad addr2 %q: %w", rest[0], err)
		}
		t.A2 = a2
		rest = rest[1:]
	}
	if op.HasA3() {
		if len(rest) < 1 {
			return txn.Transaction{}, false, fmt.Errorf("trace: %s missing addr3: %q", fields[1], line)
		}
		a3, err := parseHex(rest[0])
		if err != nil {
			return txn.Transaction{}, false, fmt.Errorf("trace: bad addr3 %q: %w", rest[0], err)
		}
		t.A3 = a3
		rest = rest[1:]
	}

	if len(rest) < 1 {
		return txn.Transaction{}, false, fmt.Errorf("trace: missing added_cycle: %q", line)
	}
	cycle, err := strconv.ParseUint(rest[0], 10, 64)
	if err != nil {
		return txn.Transaction{}, false, fmt.Errorf("trace: bad added_cycle %q: %w", rest[0], err)
	}
	t.AddedCycle = cycle

	return t, true, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strconv.ParseUint(s, 16, 64)
}

// Scan reads every line from r, calling fn for each successfully parsed
// transaction in file order. Unknown-op lines are skipped, not reported,
// per §7.4; Scan stops at the first other malformed line or the first
// error fn returns, and returns that error prefixed with its line number.
func Scan(r io.Reader, fn func(txn.Transaction) error) error {
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		t, ok, err := ParseLine(s.Text())
		if err != nil {
			return fmt.Errorf("trace: line %d: %w", lineNo, err)
		}
		if !ok {
			continue
		}
		if err := fn(t); err != nil {
			return fmt.Errorf("trace: line %d: %w", lineNo, err)
		}
	}
	return s.Err()
}
