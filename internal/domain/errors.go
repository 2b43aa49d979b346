package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the importer, the codec and the site model.
var (
	// ErrBadInput malformed or empty input buffer, or a missing root element in strict XML mode
	ErrBadInput = errors.New("bad input")
	// ErrLimitExceeded a per-sheet or per-site cap was tripped
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInvalidOperation API misuse against the site model (unknown id, invariant violation)
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrSchemaMismatch unknown root or missing children; parsers only log it
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// LimitError carries the cap that was tripped and the observed count.
type LimitError struct {
	Scope    string // sheet name, or "site" for the device cap
	Cap      int
	Observed int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit exceeded: %s has %d entries (cap %d)", e.Scope, e.Observed, e.Cap)
}

// Is lets errors.Is(err, ErrLimitExceeded) match.
func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// BadInputf wraps ErrBadInput with context.
func BadInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

func invalidOpf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
