package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// tone returns frames*channels interleaved samples of a sine at the given
// depth, each channel at a different pitch so channel order is checkable.
func tone(frames, channels, bits int) []int {
	peak := float64(int(1)<<(bits-1) - 1)
	out := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			phase := 2 * math.Pi * float64(i*(ch+1)) / 97
			out[i*channels+ch] = int(0.8 * peak * math.Sin(phase))
		}
	}
	return out
}

// writeWAVFixture encodes samples as an integer PCM WAV file under t.TempDir.
func writeWAVFixture(t *testing.T, name string, rate, bits, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bits, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: bits,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finishing %s: %v", name, err)
	}
	return path
}

// writeFLACFixture encodes samples as a FLAC file of verbatim subframes.
func writeFLACFixture(t *testing.T, name string, rate, bits, channels, blockSize int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	defer f.Close()

	total := len(samples) / channels
	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    uint32(rate),
		NChannels:     uint8(channels),
		BitsPerSample: uint8(bits),
		NSamples:      uint64(total),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Skipf("FLAC encoder unavailable: %v", err)
	}

	layout := frame.ChannelsMono
	if channels == 2 {
		layout = frame.ChannelsLR
	}

	for num, start := 0, 0; start < total; num, start = num+1, start+blockSize {
		n := min(blockSize, total-start)
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(rate),
				Channels:          layout,
				BitsPerSample:     uint8(bits),
				Num:               uint64(num),
			},
		}
		for ch := 0; ch < channels; ch++ {
			sub := &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   make([]int32, n),
				NSamples:  n,
			}
			for i := 0; i < n; i++ {
				sub.Samples[i] = int32(samples[(start+i)*channels+ch])
			}
			fr.Subframes = append(fr.Subframes, sub)
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			t.Skipf("FLAC encoder rejected frame %d: %v", num, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finishing %s: %v", name, err)
	}
	return path
}

// mp3FrameBytes is the length of an unpadded 128 kbps MPEG-1 Layer III
// frame at 44.1 kHz.
const mp3FrameBytes = 144 * 128000 / 44100

// silentMP3 builds a 128 kbps 44.1 kHz Layer III stream of silent frames.
// With info set, an Info summary frame counting the audio frames comes first.
func silentMP3(frames int, mono, info bool) []byte {
	mode, side := byte(0x00), 32
	if mono {
		mode, side = 0xC0, 17
	}
	frame := func() []byte {
		b := make([]byte, mp3FrameBytes)
		copy(b, []byte{0xFF, 0xFB, 0x90, mode})
		return b
	}

	var out []byte
	if info {
		f := frame()
		copy(f[4+side:], xingTag("Info", uint32(frames), uint32((frames+1)*mp3FrameBytes)))
		out = append(out, f...)
	}
	for i := 0; i < frames; i++ {
		out = append(out, frame()...)
	}
	return out
}

// ksSubFormat returns the SubFormat GUID for a plain WAV format tag.
func ksSubFormat(tag uint16) []byte {
	return append(binary.LittleEndian.AppendUint16(nil, tag), ksDataFormatSuffix...)
}

// extensibleWAV builds a WAVE_FORMAT_EXTENSIBLE file around raw sample bytes.
func extensibleWAV(subFormat []byte, rate, bits, channels int, data []byte) []byte {
	align := channels * bits / 8
	fmtChunk := binary.LittleEndian.AppendUint16(nil, wavFormatExtensible)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(channels))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(rate))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(rate*align))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(align))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(bits))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 22) // cbSize
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(bits))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, 0x3) // front left and right
	fmtChunk = append(fmtChunk, subFormat...)

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+8+len(fmtChunk)+8+len(data)))
	out = append(out, "WAVEfmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fmtChunk)))
	out = append(out, fmtChunk...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...)
}

// writeFile writes raw bytes to a file under t.TempDir.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func readTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}

// decodeAll reads f to the end with a BufferSize buffer, checking that no
// call writes more than BufferSize bytes.
func decodeAll(t *testing.T, f *File) ([]byte, error) {
	t.Helper()
	buf := make([]byte, f.BufferSize())
	var out []byte
	for {
		n, err := f.Read(buf)
		if n > f.BufferSize() {
			t.Fatalf("Read wrote %d bytes, more than BufferSize %d", n, f.BufferSize())
		}
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
