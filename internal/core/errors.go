package core

import "fmt"

// Kind tags the taxonomy of failures a pipeline stage can report. Duplicate
// is not actually represented by an *Error — it is a silent drop — but is
// included here so callers can switch exhaustively.
type Kind int

const (
	KindDuplicate Kind = iota
	KindDownstreamError
	KindConcurrencyViolation
	KindOverflow
	KindShutdown
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindDownstreamError:
		return "downstream_error"
	case KindConcurrencyViolation:
		return "concurrency_violation"
	case KindOverflow:
		return "overflow"
	case KindShutdown:
		return "shutdown"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by pipeline stages. ClientID is
// the ClientID of the event the error concerns; the Kind sentinels below
// leave it zero.
type Error struct {
	Kind     Kind
	ClientID int64
	Err      error
}

func newError(kind Kind, clientID int64, err error) *Error {
	return &Error{Kind: kind, ClientID: clientID, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("core: %s (client_id=%d): %v", e.Kind, e.ClientID, e.Err)
	}
	return fmt.Sprintf("core: %s (client_id=%d)", e.Kind, e.ClientID)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, core.ErrShutdown) (and the other Kind sentinels
// below) match any *Error of the same Kind, regardless of ClientID or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for use with errors.Is. Only Kind is compared.
var (
	ErrShutdown             = &Error{Kind: KindShutdown}
	ErrConcurrencyViolation = &Error{Kind: KindConcurrencyViolation}
	ErrDownstream           = &Error{Kind: KindDownstreamError}
	ErrOverflow             = &Error{Kind: KindOverflow}
	ErrInternal             = &Error{Kind: KindInternal}
)
