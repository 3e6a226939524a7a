package memsim

import "github.com/rcolburn/memsim/internal/txn"

// Op and Transaction are defined in internal/txn so the dispatcher-variant
// packages (internal/jedec, internal/hmc, internal/ideal) can depend on
// them without importing this root package, which in turn depends on the
// dispatcher packages. These are plain aliases: a memsim.Transaction and an
// internal/txn.Transaction are the same type.
type (
	Op          = txn.Op
	Transaction = txn.Transaction
)

const (
	OpRead     = txn.OpRead
	OpWrite    = txn.OpWrite
	OpCimFetch = txn.OpCimFetch
	OpCimStore = txn.OpCimStore
	OpCimAdd   = txn.OpCimAdd
	OpCimXor   = txn.OpCimXor
	OpCimSwap  = txn.OpCimSwap
)
