package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// The SubFormat GUID starts 24 bytes into an extensible fmt chunk.
	wavSubFormatOffset = 24
)

// ksDataFormatSuffix is the fixed tail of every KSDATAFORMAT_SUBTYPE GUID;
// the first two bytes hold the plain format tag.
var ksDataFormatSuffix = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// wavBackend decodes integer PCM WAV files with go-audio/wav.
type wavBackend struct {
	packetSamples int
}

func (b *wavBackend) Name() string { return "wav" }

func (b *wavBackend) Match(header []byte) bool {
	return len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE"))
}

func (b *wavBackend) Open(path string) (Source, error) {
	return openWAVSource(path, b.packetSamples)
}

// wavPacket is one block of integer samples read by PCMBuffer.
type wavPacket struct {
	samples []int
}

func (p wavPacket) Size() int { return len(p.samples) }

// wavSource implements Source for WAV files.
type wavSource struct {
	file    *os.File
	decoder *wav.Decoder
	props   Properties
	bits    int

	intBuf *audio.IntBuffer
	out    []byte
	frames [1]Frame
}

// wavCodecName returns FFmpeg's long name for the PCM codec of the given depth.
func wavCodecName(bits int) string {
	if bits == 8 {
		return "PCM unsigned 8-bit"
	}
	return fmt.Sprintf("PCM signed %d-bit little-endian", bits)
}

func openWAVSource(path string, packetSamples int) (*wavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: invalid WAV file", ErrUnknownFormat)
	}

	// Get format info without reading all samples
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to seek to PCM data: %w", ErrNoStreams, err)
	}

	s := &wavSource{file: f, decoder: decoder, bits: int(decoder.BitDepth)}
	channels := int(decoder.NumChans)
	if channels <= 0 {
		s.Close()
		return nil, ErrNoChannels
	}

	af := decoder.WavAudioFormat
	if af == wavFormatExtensible {
		af, err = wavSubFormat(path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: extensible WAV: %w", ErrNoDecoder, err)
		}
	}
	if af != wavFormatPCM {
		s.Close()
		if af == wavFormatFloat {
			return nil, fmt.Errorf("%w: floating point WAV", ErrBadSampleFormat)
		}
		return nil, fmt.Errorf("%w: WAV format tag 0x%04x", ErrNoDecoder, af)
	}

	var format SampleFormat
	switch s.bits {
	case 8:
		format = SampleFormatU8
	case 16:
		format = SampleFormatS16
	case 24, 32:
		format = SampleFormatS32
	default:
		s.Close()
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrBadSampleFormat, s.bits)
	}

	sampleRate := int(decoder.SampleRate)
	var duration float64
	if sampleRate > 0 {
		frameBytes := int64(channels * s.bits / 8)
		duration = float64(decoder.PCMLen()/frameBytes) / float64(sampleRate)
	}

	s.props = finishProperties(Properties{
		CodecName:     wavCodecName(s.bits),
		BitRate:       sampleRate * channels * s.bits,
		SampleRate:    sampleRate,
		BitsPerSample: s.bits,
		Channels:      channels,
		Duration:      duration,
		Format:        format,
	}, packetSamples)

	s.intBuf = &audio.IntBuffer{
		Data: make([]int, packetSamples*channels),
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: s.bits,
	}
	return s, nil
}

// wavSubFormat returns the format tag held in the SubFormat GUID of the
// WAVE_FORMAT_EXTENSIBLE fmt chunk at path, or 0 for a non-standard GUID.
func wavSubFormat(path string) (uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	p := riff.New(f)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("no fmt chunk: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < wavSubFormatOffset+16 {
			return 0, fmt.Errorf("fmt chunk of %d bytes has no SubFormat", ch.Size)
		}
		data := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, data); err != nil {
			return 0, err
		}
		guid := data[wavSubFormatOffset : wavSubFormatOffset+16]
		if !bytes.Equal(guid[2:], ksDataFormatSuffix) {
			return 0, nil
		}
		return binary.LittleEndian.Uint16(guid), nil
	}
}

func (s *wavSource) Properties() Properties {
	return s.props
}

func (s *wavSource) ReadPacket() (Packet, error) {
	s.intBuf.Data = s.intBuf.Data[:cap(s.intBuf.Data)]
	n, err := s.decoder.PCMBuffer(s.intBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	// Keep whole sample frames only.
	n -= n % s.props.Channels
	if n == 0 {
		return nil, io.EOF
	}
	return wavPacket{samples: s.intBuf.Data[:n]}, nil
}

// Decode packs integer samples into the stream's output format, shifting
// 24-bit samples into the top of a 32-bit word.
func (s *wavSource) Decode(pkt Packet) ([]Frame, error) {
	if pkt == nil {
		return nil, nil
	}
	p, ok := pkt.(wavPacket)
	if !ok {
		return nil, fmt.Errorf("wav source cannot decode %T", pkt)
	}

	width := s.props.Format.BytesPerSample()
	out := growBytes(s.out, len(p.samples)*width)
	switch s.props.Format {
	case SampleFormatU8:
		for i, v := range p.samples {
			out[i] = byte(v)
		}
	case SampleFormatS16:
		for i, v := range p.samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
		}
	case SampleFormatS32:
		shift := uint(32 - s.bits)
		for i, v := range p.samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)<<shift))
		}
	}
	s.out = out

	s.frames[0] = Frame{
		Format:   s.props.Format,
		Channels: s.props.Channels,
		Samples:  len(p.samples) / s.props.Channels,
		Planes:   [][]byte{out},
	}
	return s.frames[:], nil
}

func (s *wavSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.decoder = nil, nil
	return err
}
