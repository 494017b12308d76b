// Package pcm writes the raw interleaved PCM stream of an audio.File to disk.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hashicorp/go-multierror"
)

// ErrFloatWAV is returned for floating point streams, which the WAV encoder
// cannot store.
var ErrFloatWAV = errors.New("floating point PCM cannot be written as WAV")

const wavFormatPCM = 1

// Format describes the layout of a PCM byte stream.
type Format struct {
	SampleRate int
	Channels   int
	Width      int // bits per stored sample: 8, 16 or 32
	Bits       int // significant bits, left-aligned within Width; 0 means Width
	Float      bool
}

// depth returns the bit depth the WAV file is written with.
func (f Format) depth() int {
	if f.Bits > 0 && f.Bits < f.Width {
		return f.Bits
	}
	return f.Width
}

func (f Format) validate() error {
	if f.Float {
		return ErrFloatWAV
	}
	switch f.Width {
	case 8, 16, 32:
	default:
		return fmt.Errorf("unsupported sample width %d", f.Width)
	}
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return fmt.Errorf("invalid stream: %d Hz, %d channels", f.SampleRate, f.Channels)
	}
	return nil
}

// WAVWriter encodes interleaved little-endian PCM bytes into a WAV file.
// Samples stored left-aligned in 32 bits are written at their real depth.
type WAVWriter struct {
	file    *os.File
	encoder *wav.Encoder
	format  Format
	shift   uint

	buf  *audio.IntBuffer
	tail []byte // bytes of an incomplete sample frame from the last Write
}

// CreateWAV creates path and returns a writer for a stream of format f.
func CreateWAV(path string, f Format) (*WAVWriter, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	depth := f.depth()
	return &WAVWriter{
		file:    file,
		encoder: wav.NewEncoder(file, f.SampleRate, depth, f.Channels, wavFormatPCM),
		format:  f,
		shift:   uint(f.Width - depth),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
			SourceBitDepth: depth,
		},
	}, nil
}

// Write encodes p. A sample frame split across calls is held until the
// rest of it arrives.
func (w *WAVWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(w.tail) > 0 {
		p = append(w.tail, p...)
		w.tail = nil
	}

	width := w.format.Width / 8
	frameBytes := width * w.format.Channels
	whole := len(p) - len(p)%frameBytes
	if whole < len(p) {
		w.tail = append([]byte(nil), p[whole:]...)
	}
	p = p[:whole]

	count := len(p) / width
	if count == 0 {
		return n, nil
	}
	if cap(w.buf.Data) < count {
		w.buf.Data = make([]int, count)
	}
	data := w.buf.Data[:count]
	for i := range data {
		switch width {
		case 1:
			data[i] = int(p[i])
		case 2:
			data[i] = int(int16(binary.LittleEndian.Uint16(p[i*2:])))
		case 4:
			data[i] = int(int32(binary.LittleEndian.Uint32(p[i*4:])) >> w.shift)
		}
	}
	w.buf.Data = data

	if err := w.encoder.Write(w.buf); err != nil {
		return 0, fmt.Errorf("failed to encode WAV samples: %w", err)
	}
	return n, nil
}

// Close finalises the WAV header and closes the file.
func (w *WAVWriter) Close() error {
	var result *multierror.Error
	if len(w.tail) > 0 {
		result = multierror.Append(result, fmt.Errorf("%d trailing bytes do not form a sample frame", len(w.tail)))
	}
	if w.encoder != nil {
		if err := w.encoder.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to finalise WAV: %w", err))
		}
		w.encoder = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		w.file = nil
	}
	return result.ErrorOrNil()
}

var _ io.WriteCloser = (*WAVWriter)(nil)
