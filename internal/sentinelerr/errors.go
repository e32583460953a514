// Package sentinelerr defines the engine's error taxonomy (spec §7). Every
// error a component returns to a caller carries a stable Kind so transport
// adapters can map it to a response shape without string matching.
package sentinelerr

import "fmt"

// Kind is a stable error-taxonomy tag.
type Kind string

const (
	KindBadInput            Kind = "E_BadInput"
	KindInsufficientHistory Kind = "E_InsufficientHistory"
	KindNoSignal            Kind = "E_NoSignal"
	KindVeto                Kind = "E_Veto"
	KindOversize            Kind = "E_Oversize"
	KindStale               Kind = "E_Stale"
	KindCancelled           Kind = "E_Cancelled"
	KindUpstream            Kind = "E_Upstream"
	KindConfig              Kind = "E_Config"
	KindInternal            Kind = "E_Internal"
)

// Error is the engine's uniform error shape.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes a wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind.
func New(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap builds an Error of the given kind around a causal error.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// InsufficientHistory builds the standard E_InsufficientHistory error.
func InsufficientHistory(have, need int) *Error {
	return New(KindInsufficientHistory, fmt.Sprintf("have %d closed bars, need %d", have, need),
		map[string]any{"have": have, "need": need})
}

// Config builds the standard E_Config error.
func Config(message string) *Error {
	return New(KindConfig, message, nil)
}

// BadInput builds the standard E_BadInput error.
func BadInput(message string) *Error {
	return New(KindBadInput, message, nil)
}

// Oversize builds the standard E_Oversize error.
func Oversize(limit, got int) *Error {
	return New(KindOversize, fmt.Sprintf("input has %d rows, limit is %d", got, limit),
		map[string]any{"limit": limit, "got": got})
}

// Internal builds the standard E_Internal error, carrying a stable invariant code.
func Internal(invariantCode, message string) *Error {
	return New(KindInternal, message, map[string]any{"invariant": invariantCode})
}
