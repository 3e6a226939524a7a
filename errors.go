package memsim

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a simulator Error (§7.1 "Configuration errors are
// fatal; admission violations are... an assertion failure").
type ErrorCode string

const (
	ErrCodeConfigMismatch     ErrorCode = "config mismatch"
	ErrCodeAdmissionViolation ErrorCode = "admission violation"
	ErrCodeUnknownOp          ErrorCode = "unknown op"
	ErrCodeQueueOverflow      ErrorCode = "queue overflow"
)

// Error is a structured simulator error carrying enough context to locate
// the failing dispatcher call without string-matching the message.
type Error struct {
	Op     string    // operation that failed, e.g. "AddTransaction", "New"
	Code   ErrorCode // high-level error category
	Channel int      // channel index, -1 if not applicable
	Vault   int      // vault index, -1 if not applicable
	ReqID   uint64    // originating req_id, 0 if not applicable
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("memsim: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("memsim: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports equality by error code, so callers can test for a category
// with errors.Is(err, &Error{Code: ErrCodeAdmissionViolation}) without
// matching every field.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds an Error with no channel/vault/req_id context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Channel: -1, Vault: -1, Msg: msg}
}

// NewChannelError builds an Error scoped to a JEDEC channel.
func NewChannelError(op string, channel int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Channel: channel, Vault: -1, Msg: msg}
}

// NewVaultError builds an Error scoped to an HMC vault.
func NewVaultError(op string, vault int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Channel: -1, Vault: vault, Msg: msg}
}

// WrapError attaches op context to an existing error, preserving its code
// if it is already a structured Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: e.Code, Channel: e.Channel, Vault: e.Vault, ReqID: e.ReqID, Msg: e.Msg, Inner: e.Inner}
	}
	return &Error{Op: op, Code: ErrCodeUnknownOp, Channel: -1, Vault: -1, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
