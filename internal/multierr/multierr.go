// Package multierr implements the aggregate-error type the action
// policy's fan-out needs (spec.md §4.G "partial failure" rule: an action
// applied across several branches may succeed on some and fail on
// others; the multiplexer must report the first failure while not
// losing the others from the log).
//
// Kept nearly verbatim from rclone's backend/union/errors.go —
// same Map/FilterNil/Err/Error/Unwrap shape — with one addition,
// BranchError, since our fan-out needs to remember *which* branch each
// error came from for logging and for picking "the first failure code"
// (spec.md §4.I rename engine partial-failure rule reuses this too).
package multierr

import (
	"bytes"
	"fmt"
)

// BranchError pairs a branch path with the error that occurred there.
type BranchError struct {
	BranchPath string
	Err        error
}

func (e *BranchError) Error() string  { return fmt.Sprintf("%s: %v", e.BranchPath, e.Err) }
func (e *BranchError) Unwrap() error  { return e.Err }

// Errors wraps a slice of errors collected from a fan-out across
// branches.
type Errors []error

// Map returns a copy of the error slice with all its errors modified
// according to the mapping function. If mapping returns nil, the error
// is dropped from the slice with no replacement.
func (e Errors) Map(mapping func(error) error) Errors {
	s := make([]error, len(e))
	i := 0
	for _, err := range e {
		nerr := mapping(err)
		if nerr == nil {
			continue
		}
		s[i] = nerr
		i++
	}
	return Errors(s[:i])
}

// FilterNil returns the Errors without any nil entries.
func (e Errors) FilterNil() Errors {
	return e.Map(func(err error) error { return err })
}

// Err returns an error interface over the filtered slice, or nil if no
// non-nil error remains — the form callers actually return to a FUSE
// operation's result path.
func (e Errors) Err() error {
	ne := e.FilterNil()
	if len(ne) == 0 {
		return nil
	}
	return ne
}

// First returns the first non-nil error, or nil if none, implementing
// spec.md §4.I's "the first failure code is returned" rule.
func (e Errors) First() error {
	for _, err := range e {
		if err != nil {
			return err
		}
	}
	return nil
}

// Error returns a concatenated string of the contained errors.
func (e Errors) Error() string {
	var buf bytes.Buffer
	switch len(e) {
	case 0:
		buf.WriteString("no error")
	case 1:
		buf.WriteString("1 error: ")
	default:
		fmt.Fprintf(&buf, "%d errors: ", len(e))
	}
	for i, err := range e {
		if i != 0 {
			buf.WriteString("; ")
		}
		if err != nil {
			buf.WriteString(err.Error())
		} else {
			buf.WriteString("nil error")
		}
	}
	return buf.String()
}

// Unwrap returns the wrapped errors, enabling errors.Is/As over the
// whole aggregate.
func (e Errors) Unwrap() []error { return e }
