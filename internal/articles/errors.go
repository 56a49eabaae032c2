package articles

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindStorage
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindUpload:
		return "upload"
	default:
		return "internal"
	}
}

// Error is returned by every Service operation that fails
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string // validation failures, keyed by field
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func validationError(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

func notFound(id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("article %s not found", id)}
}

func conflict(id string, err error) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf("article %s was modified by someone else", id), Err: err}
}

func storageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}
