package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the process boundary.
// The string values appear as the prefix of the one-line error message.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindMalformedQuery    Kind = "MalformedQuery"
	KindAmbiguousArtifact Kind = "AmbiguousArtifact"
	KindInternal          Kind = "Internal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrMalformedQuery    = errors.New("malformed query")
	ErrAmbiguousArtifact = errors.New("ambiguous artifact")
)

// Error carries a Kind alongside the message so the CLI can choose an exit
// code without string matching.
type Error struct {
	Kind Kind

	// Field is the query key the error refers to, if any.
	Field string

	Msg string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrMalformedQuery:
		return e.Kind == KindMalformedQuery
	case ErrAmbiguousArtifact:
		return e.Kind == KindAmbiguousArtifact
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal for errors raised outside
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

func notFoundf(field string, cause error, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Field: field, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func malformedf(field string, format string, args ...any) error {
	return &Error{Kind: KindMalformedQuery, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func internalf(cause error, format string, args ...any) error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...), Err: cause}
}
