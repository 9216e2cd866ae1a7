// Package apperr classifies domain errors so the HTTP layer can map them to
// status codes without knowing every domain package.
package apperr

import "github.com/go-faster/errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a classified error with a message that is safe to show clients.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

func Invalid(msg string) *Error      { return New(KindInvalid, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }

type kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Message returns the client-safe message of the first classified error in
// err's chain, or "" when err is unclassified.
func Message(err error) string {
	var k kinded
	if errors.As(err, &k) {
		if e, ok := k.(error); ok {
			return e.Error()
		}
	}
	return ""
}
