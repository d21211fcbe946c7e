// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import "fmt"

// ErrorKind classifies a chain error along the failure-semantics axis
// spec.md §4.4/§7 cares about: header-level failures ban the sender, body
// failures mark the block invalid in the store, storage failures are fatal
// to the in-flight request (the caller retries).
type ErrorKind int

const (
	// ErrUnknown is the zero value; never returned deliberately.
	ErrUnknown ErrorKind = iota

	// ErrInvalidHeader covers every header-level rejection: bad version,
	// timestamp out of bounds, bad PoW, wrong difficulty.
	ErrInvalidHeader
	// ErrUnfitBlock covers block-fit failures: unknown previous hash, wrong
	// height.
	ErrUnfitBlock
	// ErrInvalidBody covers body-level rejections: unknown input, immature
	// coinbase, cut-through, unbalanced kernel sum, bad rangeproof/signature,
	// NRD violation.
	ErrInvalidBody
	// ErrAlreadyKnown is returned when the block was previously marked
	// invalid. A block that is already stored is not an error: ProcessBlock
	// returns a nil Tip and a nil error for it.
	ErrAlreadyKnown
	// ErrStorage wraps a failure reading or writing the backing store,
	// fatal to the in-flight request.
	ErrStorage
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidHeader:
		return "invalid header"
	case ErrUnfitBlock:
		return "unfit block"
	case ErrInvalidBody:
		return "invalid body"
	case ErrAlreadyKnown:
		return "already known"
	case ErrStorage:
		return "storage error"
	default:
		return "unknown"
	}
}

// Error is the single error type every chain operation returns, carrying
// the ErrorKind a caller needs to decide what to do (ban the sender, mark
// the block invalid, retry the request) without parsing a message string,
// per spec.md §9's "forbid stringly-typed error messages in core
// predicates".
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("chain: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind ErrorKind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsErrorKind reports whether err is a *Error of the given kind.
func IsErrorKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}
