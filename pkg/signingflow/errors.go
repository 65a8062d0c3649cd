package signingflow

import (
	"errors"
	"fmt"
)

// Kind classifies controller failures
type Kind int

const (
	KindInput Kind = iota + 1
	KindIO
	KindUserRejected
	KindProvider
	KindRelay
	KindTransactionRejected
	KindTransactionReverted
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input error"
	case KindIO:
		return "io error"
	case KindUserRejected:
		return "user rejected"
	case KindProvider:
		return "provider error"
	case KindRelay:
		return "relay error"
	case KindTransactionRejected:
		return "transaction rejected"
	case KindTransactionReverted:
		return "transaction reverted"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every controller operation
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind sentinels below, so errors.Is(err, ErrRelay) works
// through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInput               = &Error{Kind: KindInput}
	ErrIO                  = &Error{Kind: KindIO}
	ErrUserRejected        = &Error{Kind: KindUserRejected}
	ErrProvider            = &Error{Kind: KindProvider}
	ErrRelay               = &Error{Kind: KindRelay}
	ErrTransactionRejected = &Error{Kind: KindTransactionRejected}
	ErrTransactionReverted = &Error{Kind: KindTransactionReverted}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or 0 when err is not a controller error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
