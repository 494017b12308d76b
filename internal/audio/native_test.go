package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/linuxmatters/spekfire/internal/config"
)

func nativeManager() *Manager {
	cfg := config.Default()
	cfg.Backend = config.BackendNative
	return NewManager(ManagerOptions{Config: cfg})
}

func TestNativeWAV(t *testing.T) {
	testCases := []struct {
		name     string
		rate     int
		bits     int
		channels int
		codec    string
		format   SampleFormat
		width    int
	}{
		{"2ch-44100Hz-16bps.wav", 44100, 16, 2, "PCM signed 16-bit little-endian", SampleFormatS16, 16},
		{"1ch-96000Hz-24bps.wav", 96000, 24, 1, "PCM signed 24-bit little-endian", SampleFormatS32, 32},
		{"2ch-48000Hz-32bps.wav", 48000, 32, 2, "PCM signed 32-bit little-endian", SampleFormatS32, 32},
	}

	m := nativeManager()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frames := tc.rate / 10
			samples := tone(frames, tc.channels, tc.bits)
			path := writeWAVFixture(t, tc.name, tc.rate, tc.bits, tc.channels, samples)

			f := m.Open(path)
			defer f.Close()
			if err := f.Err(); err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			if f.CodecName() != tc.codec {
				t.Errorf("CodecName = %q, want %q", f.CodecName(), tc.codec)
			}
			if f.BitRate() != 0 {
				t.Errorf("BitRate = %d, want 0", f.BitRate())
			}
			if f.SampleRate() != tc.rate {
				t.Errorf("SampleRate = %d, want %d", f.SampleRate(), tc.rate)
			}
			if f.BitsPerSample() != tc.bits {
				t.Errorf("BitsPerSample = %d, want %d", f.BitsPerSample(), tc.bits)
			}
			if f.Width() != tc.width {
				t.Errorf("Width = %d, want %d", f.Width(), tc.width)
			}
			if f.Channels() != tc.channels {
				t.Errorf("Channels = %d, want %d", f.Channels(), tc.channels)
			}
			if f.Format() != tc.format {
				t.Errorf("Format = %v, want %v", f.Format(), tc.format)
			}
			if math.Abs(f.Duration()-0.1) > 1e-6 {
				t.Errorf("Duration = %f, want 0.1", f.Duration())
			}

			pcm, err := decodeAll(t, f)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			width := tc.width / 8
			if want := frames * tc.channels * width; len(pcm) != want {
				t.Fatalf("decoded %d bytes, want %d", len(pcm), want)
			}
			if f.State() != StateExhausted {
				t.Errorf("State = %v, want exhausted", f.State())
			}

			shift := tc.width - tc.bits
			for i, v := range samples {
				var got int64
				if width == 2 {
					got = int64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
				} else {
					got = int64(int32(binary.LittleEndian.Uint32(pcm[i*4:])))
				}
				if want := int64(v) << shift; got != want {
					t.Fatalf("sample %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestNativeWAVUnsigned8Bit(t *testing.T) {
	samples := make([]int, 800)
	for i := range samples {
		samples[i] = 100 + i%100
	}
	path := writeWAVFixture(t, "1ch-8000Hz-8bps.wav", 8000, 8, 1, samples)

	f := nativeManager().Open(path)
	defer f.Close()
	if err := f.Err(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if f.CodecName() != "PCM unsigned 8-bit" {
		t.Errorf("CodecName = %q", f.CodecName())
	}
	if f.Format() != SampleFormatU8 {
		t.Errorf("Format = %v, want u8", f.Format())
	}

	pcm, err := decodeAll(t, f)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(pcm) != len(samples) {
		t.Fatalf("decoded %d bytes, want %d", len(pcm), len(samples))
	}
	for i, v := range samples {
		if int(pcm[i]) != v {
			t.Fatalf("sample %d = %d, want %d", i, pcm[i], v)
		}
	}
}

func TestNativeFLAC(t *testing.T) {
	testCases := []struct {
		name     string
		rate     int
		bits     int
		channels int
		width    int
	}{
		{"1ch-96000Hz-24bps.flac", 96000, 24, 1, 32},
		{"2ch-48000Hz-16bps.flac", 48000, 16, 2, 16},
	}

	m := nativeManager()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			const blockSize = 4096
			frames := tc.rate / 10
			samples := tone(frames, tc.channels, tc.bits)
			path := writeFLACFixture(t, tc.name, tc.rate, tc.bits, tc.channels, blockSize, samples)

			f := m.Open(path)
			defer f.Close()
			if err := f.Err(); err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			if !strings.HasPrefix(f.CodecName(), "FLAC") {
				t.Errorf("CodecName = %q, want FLAC prefix", f.CodecName())
			}
			if f.BitRate() != 0 {
				t.Errorf("BitRate = %d, want 0", f.BitRate())
			}
			if f.SampleRate() != tc.rate || f.BitsPerSample() != tc.bits || f.Channels() != tc.channels {
				t.Errorf("got %d Hz/%d bits/%d ch, want %d/%d/%d",
					f.SampleRate(), f.BitsPerSample(), f.Channels(), tc.rate, tc.bits, tc.channels)
			}
			if f.Width() != tc.width {
				t.Errorf("Width = %d, want %d", f.Width(), tc.width)
			}
			if f.Float() {
				t.Error("Float = true for FLAC")
			}
			if want := tc.channels * tc.width / 8 * blockSize; f.BufferSize() != want {
				t.Errorf("BufferSize = %d, want %d", f.BufferSize(), want)
			}
			if math.Abs(f.Duration()-0.1) > 1e-6 {
				t.Errorf("Duration = %f, want 0.1", f.Duration())
			}

			pcm, err := decodeAll(t, f)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			width := tc.width / 8
			if want := frames * tc.channels * width; len(pcm) != want {
				t.Fatalf("decoded %d bytes, want %d", len(pcm), want)
			}

			// Planar subframes come out interleaved and left-aligned.
			shift := tc.width - tc.bits
			for i, v := range samples {
				var got int64
				if width == 2 {
					got = int64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
				} else {
					got = int64(int32(binary.LittleEndian.Uint32(pcm[i*4:])))
				}
				if want := int64(v) << shift; got != want {
					t.Fatalf("sample %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

// TestNativeFLACTruncated cuts a FLAC file mid-frame. The audio before the
// cut must still be delivered, and the damage must surface as an error or an
// early end, never a panic.
func TestNativeFLACTruncated(t *testing.T) {
	samples := tone(9600, 1, 16)
	path := writeFLACFixture(t, "truncated.flac", 96000, 16, 1, 4096, samples)

	data := readTestFile(t, path)
	cut := writeFile(t, "cut.flac", data[:len(data)*2/3])

	f := nativeManager().Open(cut)
	defer f.Close()
	if err := f.Err(); err != nil {
		if KindOf(err) != KindOpenFailed {
			t.Fatalf("open error has kind %v", KindOf(err))
		}
		return
	}

	pcm, err := decodeAll(t, f)
	if err != nil {
		if KindOf(err) != KindDecodeFailed {
			t.Errorf("KindOf = %v, want %v", KindOf(err), KindDecodeFailed)
		}
		if f.State() != StateFailed {
			t.Errorf("State = %v, want failed", f.State())
		}
	}
	if len(pcm) == 0 {
		t.Error("no audio delivered before the damaged frame")
	}
	if len(pcm) >= len(samples)*2 {
		t.Errorf("decoded %d bytes from a truncated file, the whole stream is %d", len(pcm), len(samples)*2)
	}
}

func TestNativeMP3(t *testing.T) {
	testCases := []struct {
		name     string
		mono     bool
		info     bool
		channels int
	}{
		{"stereo", false, false, 2},
		{"stereo with info frame", false, true, 2},
		{"mono with info frame", true, true, 1},
		{"mono", true, false, 1},
	}

	const frames = 5
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "silence.mp3", silentMP3(frames, tc.mono, tc.info))

			f := nativeManager().Open(path)
			defer f.Close()
			if err := f.Err(); err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			if f.Channels() != tc.channels {
				t.Errorf("Channels = %d, want %d", f.Channels(), tc.channels)
			}
			if f.BitRate() != 128000 || f.SampleRate() != 44100 || f.BitsPerSample() != 0 {
				t.Errorf("got %d bps/%d Hz/%d bits, want 128000/44100/0", f.BitRate(), f.SampleRate(), f.BitsPerSample())
			}
			if math.Abs(f.Duration()-mp3Duration) > 1e-6 {
				t.Errorf("Duration = %f, want %f", f.Duration(), mp3Duration)
			}

			pcm, err := decodeAll(t, f)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			// The summary frame carries no audio.
			if want := frames * 1152 * tc.channels * 2; len(pcm) != want {
				t.Errorf("decoded %d bytes, want %d", len(pcm), want)
			}
		})
	}
}

func TestNativeWAVExtensible(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768, 42, 7, -7}
	var raw []byte
	for _, v := range samples {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(v))
	}

	t.Run("pcm", func(t *testing.T) {
		path := writeFile(t, "pcm.wav", extensibleWAV(ksSubFormat(wavFormatPCM), 48000, 16, 2, raw))
		f := nativeManager().Open(path)
		defer f.Close()
		if err := f.Err(); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if f.Format() != SampleFormatS16 || f.Float() || f.Channels() != 2 {
			t.Errorf("got %v float=%v %d ch, want s16 integer stereo", f.Format(), f.Float(), f.Channels())
		}
		pcm, err := decodeAll(t, f)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if string(pcm) != string(raw) {
			t.Errorf("decoded %x, want %x", pcm, raw)
		}
	})

	testCases := []struct {
		name      string
		subFormat []byte
		want      error
	}{
		{"float", ksSubFormat(wavFormatFloat), ErrBadSampleFormat},
		{"compressed", ksSubFormat(0x0055), ErrNoDecoder},
		{"foreign guid", make([]byte, 16), ErrNoDecoder},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, 64)
			path := writeFile(t, tc.name+".wav", extensibleWAV(tc.subFormat, 48000, 32, 2, data))
			f := nativeManager().Open(path)
			defer f.Close()
			if !errors.Is(f.Err(), tc.want) {
				t.Fatalf("Err() = %v, want %v", f.Err(), tc.want)
			}
		})
	}
}
