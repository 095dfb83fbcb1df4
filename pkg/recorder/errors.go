package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned by a Source when the user refuses screen capture.
	ErrPermissionDenied = errors.New("screen capture permission denied")
	ErrNotRecording     = errors.New("recorder: not recording")
	ErrAlreadyRecording = errors.New("recorder: already recording")
	ErrClosed           = errors.New("recorder: closed")
)

type ErrorKind int

const (
	KindPermissionDenied ErrorKind = iota + 1
	KindSource
	KindEncoder
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindSource:
		return "capture unavailable"
	case KindEncoder:
		return "encoding failed"
	}
	return "unknown"
}

// Error is what Start and Stop report for capture and encoding failures.
// A failed recording never yields a partial Recording.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recorder %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func sourceError(op string, err error) *Error {
	kind := KindSource
	if errors.Is(err, ErrPermissionDenied) {
		kind = KindPermissionDenied
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
