package models

import (
	"errors"
	"fmt"
)

// ErrKind classifies operation failures for transport mapping (4xx/5xx) and
// for callers that branch on failure class rather than message.
type ErrKind int

const (
	KindValidation ErrKind = iota + 1
	KindNotFound
	KindStateConflict
	KindGateway
	KindIntegrity
)

type Error struct {
	Kind ErrKind
	Code string // stable machine code, e.g. "already_initialized"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: msg}
}

func StateConflict(code, msg string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Msg: msg}
}

func Gateway(code, msg string, err error) *Error {
	return &Error{Kind: KindGateway, Code: code, Msg: msg, Err: err}
}

func Integrity(code, msg string) *Error {
	return &Error{Kind: KindIntegrity, Code: code, Msg: msg}
}

// KindOf extracts the failure class, or 0 for untyped errors.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, k ErrKind) bool { return KindOf(err) == k }
