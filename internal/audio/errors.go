package audio

import (
	"errors"
	"fmt"
)

// Open failures. Each one is reported once, by Open, and leaves the file inert.
var (
	ErrCannotOpenFile    = errors.New("cannot open input file")
	ErrUnknownFormat     = errors.New("unrecognised container format")
	ErrNoStreams         = errors.New("cannot find stream info")
	ErrNoAudio           = errors.New("the file contains no audio streams")
	ErrNoDecoder         = errors.New("cannot find decoder")
	ErrCannotOpenDecoder = errors.New("cannot open decoder")
	ErrNoChannels        = errors.New("no audio channels")
	ErrBadSampleFormat   = errors.New("unsupported sample format")
)

// Read failures.
var (
	ErrDecodeFailed = errors.New("error decoding audio frame")
	ErrShortBuffer  = errors.New("buffer smaller than the session buffer size")
	ErrClosed       = errors.New("audio file is closed")
)

// ErrorKind classifies session failures.
type ErrorKind int

const (
	KindOpenFailed ErrorKind = iota + 1
	KindDecodeFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindOpenFailed:
		return "open failed"
	case KindDecodeFailed:
		return "decode failed"
	}
	return "unknown"
}

// Error is the terminal error recorded on a session.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a session error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func openError(path string, err error) *Error {
	return &Error{Kind: KindOpenFailed, Path: path, Err: err}
}

func decodeError(path string, err error) *Error {
	if !errors.Is(err, ErrDecodeFailed) {
		err = fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return &Error{Kind: KindDecodeFailed, Path: path, Err: err}
}
