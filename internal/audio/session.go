package audio

import (
	"errors"
	"fmt"
	"io"
)

// pending is decoded audio that did not fit into the caller's buffer.
// off always indexes an unread byte: a drained region is dropped, never kept
// with off == len(data).
type pending struct {
	data []byte
	off  int
}

func (p *pending) remaining() int {
	return len(p.data) - p.off
}

// Session owns one opened Source and the read cursor over its decoded audio.
// A Session is not safe for concurrent use.
type Session struct {
	path  string
	src   Source
	props Properties

	err       *Error
	exhausted bool

	// staging is reused between packets; pending aliases it while data is left.
	staging []byte
	pending *pending

	packets int64
	bytes   int64
}

// newSession takes ownership of src.
func newSession(path string, src Source) *Session {
	props := src.Properties()
	return &Session{
		path:    path,
		src:     src,
		props:   props,
		staging: make([]byte, 0, props.BufferSize),
	}
}

// Properties returns the stream properties derived at open.
func (s *Session) Properties() Properties {
	return s.props
}

// Err returns the terminal decode error, or nil.
func (s *Session) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Exhausted reports whether the stream has been read to the end.
func (s *Session) Exhausted() bool {
	return s.exhausted && s.pending == nil
}

// Pending returns the number of decoded bytes waiting for the next Read.
func (s *Session) Pending() int {
	if s.pending == nil {
		return 0
	}
	return s.pending.remaining()
}

// Read decodes the next chunk of interleaved PCM into buf and returns the
// number of bytes written. It returns io.EOF once the stream is exhausted
// and the session error once decoding has failed.
// len(buf) must be at least Properties().BufferSize; no call writes more.
func (s *Session) Read(buf []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.src == nil {
		return 0, ErrClosed
	}
	if len(buf) < s.props.BufferSize {
		return 0, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(buf), s.props.BufferSize)
	}
	buf = buf[:s.props.BufferSize]

	if s.pending != nil {
		return s.drain(buf), nil
	}
	if s.exhausted {
		return 0, io.EOF
	}

	for {
		pkt, err := s.src.ReadPacket()
		if errors.Is(err, io.EOF) {
			return s.finish(buf)
		}
		if err != nil {
			return 0, s.fail(fmt.Errorf("read packet %d: %w", s.packets, err))
		}
		s.packets++

		frames, err := s.src.Decode(pkt)
		if err != nil {
			return 0, s.fail(fmt.Errorf("packet %d: %w", s.packets, err))
		}
		if err := s.stage(frames); err != nil {
			return 0, s.fail(err)
		}
		// The decoder may keep a whole packet buffered; move on to the next.
		if s.pending == nil {
			continue
		}
		return s.drain(buf), nil
	}
}

// finish drains frames still held by the decoder once the container ends.
func (s *Session) finish(buf []byte) (int, error) {
	s.exhausted = true

	frames, err := s.src.Decode(nil)
	if err != nil {
		return 0, s.fail(fmt.Errorf("drain decoder: %w", err))
	}
	if err := s.stage(frames); err != nil {
		return 0, s.fail(err)
	}
	if s.pending == nil {
		return 0, io.EOF
	}
	return s.drain(buf), nil
}

// stage interleaves frames into the staging region and makes it pending.
func (s *Session) stage(frames []Frame) error {
	data := s.staging[:0]
	want := s.props.Format.Packed()
	for i := range frames {
		f := &frames[i]
		if f.Samples == 0 {
			continue
		}
		if f.Format.Packed() != want || f.Channels != s.props.Channels {
			return fmt.Errorf("%w: frame is %s/%dch, stream opened as %s/%dch",
				ErrDecodeFailed, f.Format, f.Channels, s.props.Format, s.props.Channels)
		}
		var err error
		data, err = f.AppendInterleaved(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
	}
	s.staging = data
	if len(data) > 0 {
		s.pending = &pending{data: data}
	}
	return nil
}

// drain copies pending bytes into buf and clears pending once it is empty.
func (s *Session) drain(buf []byte) int {
	p := s.pending
	n := copy(buf, p.data[p.off:])
	p.off += n
	if p.off >= len(p.data) {
		s.pending = nil
	}
	s.bytes += int64(n)
	return n
}

func (s *Session) fail(err error) error {
	s.err = decodeError(s.path, err)
	s.pending = nil
	return s.err
}

// Close releases the source. Later calls return nil.
func (s *Session) Close() error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	s.pending = nil
	s.staging = nil
	return err
}
