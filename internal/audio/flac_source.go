package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

var flacMagic = []byte("fLaC")

// flacCodecName matches FFmpeg's long name so both backends report the same codec.
const flacCodecName = "FLAC (Free Lossless Audio Codec)"

// flacBackend decodes native FLAC streams with mewkiz/flac.
type flacBackend struct {
	fallbackFrameSamples int
}

func (b *flacBackend) Name() string { return "flac" }

func (b *flacBackend) Match(header []byte) bool {
	return bytes.HasPrefix(header, flacMagic)
}

func (b *flacBackend) Open(path string) (Source, error) {
	return openFLACSource(path, b.fallbackFrameSamples)
}

// flacPacket is one FLAC frame; ParseNext decodes while it demuxes.
type flacPacket struct {
	frame *frame.Frame
}

func (p flacPacket) Size() int {
	if len(p.frame.Subframes) == 0 {
		return 0
	}
	return p.frame.Subframes[0].NSamples * len(p.frame.Subframes)
}

// flacSource implements Source for FLAC files.
type flacSource struct {
	file   *os.File
	stream *flac.Stream
	props  Properties
	bits   int // source bits per sample

	planes [][]byte
	frames [1]Frame
}

func openFLACSource(path string, fallbackFrameSamples int) (*flacSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}

	s := &flacSource{file: f, stream: stream}
	info := stream.Info

	channels := int(info.NChannels)
	if channels <= 0 {
		s.Close()
		return nil, ErrNoChannels
	}
	s.bits = int(info.BitsPerSample)
	if s.bits <= 0 || s.bits > 32 {
		s.Close()
		return nil, fmt.Errorf("%w: %d bits per sample", ErrBadSampleFormat, s.bits)
	}

	// Same layout FFmpeg's decoder produces: planar, 16-bit up to 16 bits, 32-bit above.
	format := SampleFormatS16P
	if s.bits > 16 {
		format = SampleFormatS32P
	}

	var duration float64
	if info.SampleRate > 0 {
		duration = float64(info.NSamples) / float64(info.SampleRate)
	}

	frameSamples := int(info.BlockSizeMax)
	if frameSamples <= 0 {
		frameSamples = fallbackFrameSamples
	}

	s.props = finishProperties(Properties{
		CodecName:     flacCodecName,
		SampleRate:    int(info.SampleRate),
		BitsPerSample: s.bits,
		Channels:      channels,
		Duration:      duration,
		Format:        format,
	}, frameSamples)
	s.planes = make([][]byte, channels)

	return s, nil
}

func (s *flacSource) Properties() Properties {
	return s.props
}

func (s *flacSource) ReadPacket() (Packet, error) {
	fr, err := s.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
	}
	return flacPacket{frame: fr}, nil
}

// Decode converts the subframes of one FLAC frame into planes of
// little-endian samples, left-aligned when stored in 32 bits.
func (s *flacSource) Decode(pkt Packet) ([]Frame, error) {
	if pkt == nil {
		return nil, nil
	}
	p, ok := pkt.(flacPacket)
	if !ok {
		return nil, fmt.Errorf("flac source cannot decode %T", pkt)
	}
	fr := p.frame

	if len(fr.Subframes) != s.props.Channels {
		return nil, fmt.Errorf("FLAC frame has %d subframes, stream has %d channels",
			len(fr.Subframes), s.props.Channels)
	}

	nsamples := fr.Subframes[0].NSamples
	width := s.props.Format.BytesPerSample()
	shift := uint(width*8 - s.bits)

	for ch, sub := range fr.Subframes {
		if sub.NSamples != nsamples || len(sub.Samples) < nsamples {
			return nil, fmt.Errorf("FLAC subframe %d has %d samples, want %d", ch, len(sub.Samples), nsamples)
		}
		plane := growBytes(s.planes[ch], nsamples*width)
		for i, v := range sub.Samples[:nsamples] {
			v <<= shift
			if width == 2 {
				binary.LittleEndian.PutUint16(plane[i*2:], uint16(int16(v)))
			} else {
				binary.LittleEndian.PutUint32(plane[i*4:], uint32(v))
			}
		}
		s.planes[ch] = plane
	}

	s.frames[0] = Frame{
		Format:   s.props.Format,
		Channels: s.props.Channels,
		Samples:  nsamples,
		Planes:   s.planes,
	}
	return s.frames[:], nil
}

// Close closes the stream and the file under it. Depending on how the
// stream was opened it may already have closed the file itself.
func (s *flacSource) Close() error {
	var result *multierror.Error
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.stream = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			result = multierror.Append(result, err)
		}
		s.file = nil
	}
	return result.ErrorOrNil()
}

// growBytes returns b resized to n bytes, reusing its storage when possible.
func growBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}
