package audio

import (
	"errors"
	"io"
	"log/slog"
)

// State is the lifecycle position of a File.
type State int

const (
	StateOpening State = iota
	StateOpened
	StateExhausted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// File is an opened audio file: one probe of one path and a read cursor
// over its decoded PCM. Files are created by Manager.Open.
//
// A File is not safe for concurrent use. Distinct Files share nothing and
// may be used from different goroutines.
type File struct {
	path    string
	state   State
	session *Session
	err     *Error
	logger  *slog.Logger
}

// Read fills buf with the next interleaved PCM bytes, in the layout given by
// Properties. It returns io.EOF once the stream is exhausted, on every call
// from then on. After a failure it returns the same *Error every time.
// len(buf) must be at least BufferSize.
func (f *File) Read(buf []byte) (int, error) {
	switch f.state {
	case StateClosed:
		return 0, ErrClosed
	case StateFailed:
		return 0, f.err
	case StateOpening:
		return 0, ErrClosed
	}

	n, err := f.session.Read(buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		f.state = StateExhausted
		return 0, io.EOF
	case errors.Is(err, ErrShortBuffer):
		return 0, err
	}

	var serr *Error
	if !errors.As(err, &serr) {
		serr = decodeError(f.path, err)
	}
	f.err = serr
	f.state = StateFailed
	f.logger.Debug("decode failed", "path", f.path, "error", err)
	return 0, f.err
}

// Close releases every decoder and demuxer handle. It is safe on a failed
// File and on one already closed; only the first call does anything.
func (f *File) Close() error {
	if f.state == StateClosed {
		return nil
	}
	f.state = StateClosed
	if f.session == nil {
		return nil
	}
	err := f.session.Close()
	f.session = nil
	return err
}

// State returns the current lifecycle state.
func (f *File) State() State { return f.state }

// Path returns the path the File was opened from.
func (f *File) Path() string { return f.path }

// Err returns the open or decode failure, or nil.
func (f *File) Err() error {
	if f.err == nil {
		return nil
	}
	return f.err
}

// Properties returns the stream properties, or the zero value when the
// File failed or is closed.
func (f *File) Properties() Properties {
	if f.state == StateFailed || f.state == StateClosed || f.session == nil {
		return Properties{}
	}
	return f.session.Properties()
}

func (f *File) CodecName() string    { return f.Properties().CodecName }
func (f *File) BitRate() int         { return f.Properties().BitRate }
func (f *File) SampleRate() int      { return f.Properties().SampleRate }
func (f *File) BitsPerSample() int   { return f.Properties().BitsPerSample }
func (f *File) Width() int           { return f.Properties().Width }
func (f *File) Float() bool          { return f.Properties().Float }
func (f *File) Channels() int        { return f.Properties().Channels }
func (f *File) Duration() float64    { return f.Properties().Duration }
func (f *File) BufferSize() int      { return f.Properties().BufferSize }
func (f *File) Format() SampleFormat { return f.Properties().Format.Packed() }

// BytesRead returns the number of PCM bytes delivered so far.
func (f *File) BytesRead() int64 {
	if f.session == nil {
		return 0
	}
	return f.session.bytes
}

// Description returns a one-line summary of the stream, or "" when the
// File has no properties.
func (f *File) Description() string {
	if f.Properties().Channels == 0 {
		return ""
	}
	return Describe(f.Properties())
}
