package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

const (
	mp3CodecName = "MP3 (MPEG audio layer 3)"

	// go-mp3 always outputs interleaved 16-bit stereo, duplicating mono.
	mp3BytesPerFrame = 4
)

// mp3Backend decodes MPEG Layer III with hajimehoshi/go-mp3.
type mp3Backend struct {
	frameSamples int
}

func (b *mp3Backend) Name() string { return "mp3" }

func (b *mp3Backend) Match(header []byte) bool {
	return bytes.HasPrefix(header, id3Magic) || isMP3Sync(header)
}

func (b *mp3Backend) Open(path string) (Source, error) {
	return openMP3Source(path, b.frameSamples)
}

// mp3Packet is one block of already decoded PCM; go-mp3 has no packet layer.
type mp3Packet struct {
	data []byte
}

func (p mp3Packet) Size() int { return len(p.data) }

// mp3Source implements Source for MP3 files.
type mp3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	props   Properties

	// skip is the decoded size of a leading summary frame still to drop.
	skip int64

	buf    []byte
	mono   []byte
	frames [1]Frame
}

func openMP3Source(path string, frameSamples int) (*mp3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	header, err := readMP3Header(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create MP3 decoder: %w", ErrCannotOpenDecoder, err)
	}

	s := &mp3Source{file: f, decoder: decoder}

	// Length counts every frame; a summary frame decodes as one frame of silence.
	samples := decoder.Length() / mp3BytesPerFrame
	if header.Tagged {
		s.skip = int64(header.Samples) * mp3BytesPerFrame
		samples -= int64(header.Samples)
	}
	if header.Frames > 0 {
		samples = int64(header.Frames) * int64(header.Samples)
	}

	sampleRate := decoder.SampleRate()
	var duration float64
	if samples > 0 && sampleRate > 0 {
		duration = float64(samples) / float64(sampleRate)
	}

	s.props = finishProperties(Properties{
		CodecName:  mp3CodecName,
		BitRate:    header.AverageBitRate(),
		SampleRate: sampleRate,
		Channels:   header.Channels,
		Duration:   duration,
		Format:     SampleFormatS16,
	}, frameSamples)
	s.buf = make([]byte, frameSamples*mp3BytesPerFrame)
	if header.Channels == 1 {
		s.mono = make([]byte, frameSamples*mp3BytesPerFrame/2)
	}
	return s, nil
}

func (s *mp3Source) Properties() Properties {
	return s.props
}

// ReadPacket decodes the next block. The final block may be short.
func (s *mp3Source) ReadPacket() (Packet, error) {
	if s.skip > 0 {
		_, err := io.CopyN(io.Discard, s.decoder, s.skip)
		s.skip = 0
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to skip MP3 summary frame: %w", err)
		}
	}
	n, err := io.ReadFull(s.decoder, s.buf)
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("failed to read MP3 data: %w", err)
	}
	// Drop a trailing partial sample.
	n -= n % mp3BytesPerFrame
	if n == 0 {
		return nil, io.EOF
	}
	return mp3Packet{data: s.buf[:n]}, nil
}

func (s *mp3Source) Decode(pkt Packet) ([]Frame, error) {
	if pkt == nil {
		return nil, nil
	}
	p, ok := pkt.(mp3Packet)
	if !ok {
		return nil, fmt.Errorf("mp3 source cannot decode %T", pkt)
	}
	data := p.data
	samples := len(data) / mp3BytesPerFrame
	if s.props.Channels == 1 {
		// Both channels carry the same sample; keep the left one.
		for i := 0; i < samples; i++ {
			copy(s.mono[i*2:i*2+2], data[i*4:i*4+2])
		}
		data = s.mono[:samples*2]
	}
	s.frames[0] = Frame{
		Format:   SampleFormatS16,
		Channels: s.props.Channels,
		Samples:  samples,
		Planes:   [][]byte{data},
	}
	return s.frames[:], nil
}

func (s *mp3Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.decoder = nil, nil
	return err
}
