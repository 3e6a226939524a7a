// Package interfaces provides the internal interface definitions shared
// across the simulator core. These are separate from the public package's
// types to avoid circular imports between the root package and the
// dispatcher-variant packages.
package interfaces

// CompletionKind tags what a controller's ReturnDoneTrans call is
// reporting: a plain read, a plain write, or a CiM sub-transaction phase
// (§3 "Controller interface contract").
type CompletionKind int

const (
	CompletionRead CompletionKind = iota
	CompletionWrite
	CompletionCiM
)

// Controller is the external, per-channel/per-vault collaborator every
// dispatcher variant drives (§1 "Out of scope", §3). Its internals —
// command scheduling, bank/rank state, timing checks — are not modeled
// here; only this admission/submission/completion-poll/tick contract is.
type Controller interface {
	// WillAcceptTransaction reports whether the controller's queue has
	// room for one more transaction of the given kind at the given
	// address. It never mutates controller state.
	WillAcceptTransaction(addr uint64, isWrite bool) bool

	// AddTransaction submits a transaction already approved by a prior
	// WillAcceptTransaction call in the same tick (§5, §7.2). reqID is
	// the originating dispatcher req_id for CiM sub-transactions, and is
	// ignored for plain reads/writes.
	AddTransaction(addr uint64, isWrite bool, isCiM bool, reqID uint64) bool

	// ReturnDoneTrans pops the next completion available at clk, if any.
	// key is the host address for plain R/W, or the CiM req_id for CiM
	// sub-transactions (§3).
	ReturnDoneTrans(clk uint64) (key uint64, kind CompletionKind, ok bool)

	// ClockTick advances the controller's internal timing model by one
	// cycle.
	ClockTick()
}

// Logger is the optional structured logger a dispatcher variant accepts,
// matching the simulator's key-value structured-logging surface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives per-event metrics callouts from a dispatcher. It must
// be safe to call from within a ClockTick frame; the simulator itself is
// single-threaded (§5), so no concurrent calls ever occur, but an Observer
// implementation backed by a shared sink (e.g. a Prometheus registry) may
// still be called from several dispatcher instances.
type Observer interface {
	ObserveCompletion(kind CompletionKind, latencyCycles uint64)
	ObserveCiMComplete(op string, latencyCycles uint64)
	ObserveQueueDepth(stage string, depth int)
	ObserveAge(stage string, age int)
}
