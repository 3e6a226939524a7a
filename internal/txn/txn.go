// Package txn defines the host-facing transaction value type (§3) in a
// package dispatcher-variant packages (internal/jedec, internal/hmc,
// internal/ideal) can depend on without creating an import cycle back to
// the root package, which in turn depends on those dispatcher packages.
// The root package re-exports these as public aliases.
package txn

import "fmt"

// Op classifies a Transaction into exactly one kind (§3 invariant 1: a
// Transaction carries exactly one classification bit set).
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpCimFetch
	OpCimStore
	OpCimAdd
	OpCimXor
	OpCimSwap
	// opUnknown is never a valid field on an admitted Transaction and no
	// code in this module produces it: the trace parser drops a line with
	// an unrecognized OP token without building a Transaction (§6, §7.4).
	opUnknown
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpCimFetch:
		return "CIM_FETCH"
	case OpCimStore:
		return "CIM_STORE"
	case OpCimAdd:
		return "CIM_ADD"
	case OpCimXor:
		return "CIM_XOR"
	case OpCimSwap:
		return "CIM_SWAP"
	default:
		return "UNKNOWN"
	}
}

// IsCiM reports whether the op is one of the five CiM variants.
func (o Op) IsCiM() bool {
	switch o {
	case OpCimFetch, OpCimStore, OpCimAdd, OpCimXor, OpCimSwap:
		return true
	default:
		return false
	}
}

// HasA2 reports whether this op carries a secondary address (§3: A2
// present iff op in {CIM_ADD, CIM_XOR, CIM_SWAP}).
func (o Op) HasA2() bool {
	switch o {
	case OpCimAdd, OpCimXor, OpCimSwap:
		return true
	default:
		return false
	}
}

// HasA3 reports whether this op carries a tertiary address (§3: A3
// present iff op in {CIM_ADD, CIM_XOR}).
func (o Op) HasA3() bool {
	switch o {
	case OpCimAdd, OpCimXor:
		return true
	default:
		return false
	}
}

// Transaction is the host-facing request (§3). Exactly one of the
// classification predicates on Op holds; A2 is meaningful iff Op.HasA2(),
// A3 iff Op.HasA3().
type Transaction struct {
	Op Op

	A1 uint64
	A2 uint64
	A3 uint64

	// ReqID is not written by the dispatchers: AddTransaction returns the
	// assigned req_id (unique per dispatcher instance, monotonically
	// increasing) instead, and this field stays zero unless the host sets
	// it (§3; §4.2 notes wraparound is the caller's problem).
	ReqID uint64

	AddedCycle    uint64
	CompleteCycle uint64
}

// String renders a Transaction for logs, e.g. when printing scenario
// completions (§8 S2/S3 expect a line naming req_id, type, and the cycle
// delta).
func (t Transaction) String() string {
	switch {
	case t.Op.HasA3():
		return fmt.Sprintf("req_id=%d type=%s a1=0x%x a2=0x%x a3=0x%x", t.ReqID, t.Op, t.A1, t.A2, t.A3)
	case t.Op.HasA2():
		return fmt.Sprintf("req_id=%d type=%s a1=0x%x a2=0x%x", t.ReqID, t.Op, t.A1, t.A2)
	default:
		return fmt.Sprintf("req_id=%d type=%s a1=0x%x", t.ReqID, t.Op, t.A1)
	}
}
