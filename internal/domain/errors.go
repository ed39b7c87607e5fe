package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the pipeline and the query engine.
type ErrorKind string

const (
	KindUnknown         ErrorKind = ""
	KindResolution      ErrorKind = "resolution"
	KindDownload        ErrorKind = "download"
	KindConversion      ErrorKind = "conversion"
	KindUpload          ErrorKind = "upload"
	KindEmbedding       ErrorKind = "embedding"
	KindIndexWrite      ErrorKind = "index_write"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrResolution      = &Error{Kind: KindResolution}
	ErrDownload        = &Error{Kind: KindDownload}
	ErrConversion      = &Error{Kind: KindConversion}
	ErrUpload          = &Error{Kind: KindUpload}
	ErrEmbedding       = &Error{Kind: KindEmbedding}
	ErrIndexWrite      = &Error{Kind: KindIndexWrite}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
)

// Error is a classified domain error.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg += ": " + e.Err.Error()
		} else {
			msg = e.Err.Error()
		}
	}
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// PublicMessage is the caller-facing message: the error text without the op prefix.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		cp := *de
		cp.Op = ""
		return cp.Error()
	}
	return err.Error()
}
