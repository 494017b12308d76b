package audio

import (
	"bytes"
	"testing"
)

func TestSampleFormatProperties(t *testing.T) {
	testCases := []struct {
		format SampleFormat
		bytes  int
		planar bool
		float  bool
		packed SampleFormat
	}{
		{SampleFormatU8, 1, false, false, SampleFormatU8},
		{SampleFormatS16, 2, false, false, SampleFormatS16},
		{SampleFormatS32, 4, false, false, SampleFormatS32},
		{SampleFormatFlt, 4, false, true, SampleFormatFlt},
		{SampleFormatDbl, 8, false, true, SampleFormatDbl},
		{SampleFormatU8P, 1, true, false, SampleFormatU8},
		{SampleFormatS16P, 2, true, false, SampleFormatS16},
		{SampleFormatS32P, 4, true, false, SampleFormatS32},
		{SampleFormatFltP, 4, true, true, SampleFormatFlt},
		{SampleFormatDblP, 8, true, true, SampleFormatDbl},
		{SampleFormatS64, 8, false, false, SampleFormatS64},
		{SampleFormatS64P, 8, true, false, SampleFormatS64},
	}

	for _, tc := range testCases {
		t.Run(tc.format.String(), func(t *testing.T) {
			if got := tc.format.BytesPerSample(); got != tc.bytes {
				t.Errorf("BytesPerSample() = %d, want %d", got, tc.bytes)
			}
			if got := tc.format.IsPlanar(); got != tc.planar {
				t.Errorf("IsPlanar() = %v, want %v", got, tc.planar)
			}
			if got := tc.format.IsFloat(); got != tc.float {
				t.Errorf("IsFloat() = %v, want %v", got, tc.float)
			}
			if got := tc.format.Packed(); got != tc.packed {
				t.Errorf("Packed() = %v, want %v", got, tc.packed)
			}
			if !tc.format.Valid() {
				t.Error("Valid() = false")
			}
		})
	}

	if SampleFormatNone.Valid() || SampleFormat(42).Valid() {
		t.Error("unknown formats should not be valid")
	}
	if got := SampleFormat(42).String(); got != "unknown(42)" {
		t.Errorf("String() = %q, want unknown(42)", got)
	}
}

func TestAppendInterleavedPacked(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 99, 99}
	f := Frame{Format: SampleFormatS16, Channels: 2, Samples: 2, Planes: [][]byte{data}}

	got, err := f.AppendInterleaved([]byte{0xAA})
	if err != nil {
		t.Fatalf("AppendInterleaved failed: %v", err)
	}
	// Bytes past Size() are decoder padding and must not be copied.
	want := []byte{0xAA, 1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestAppendInterleavedPlanar(t *testing.T) {
	testCases := []struct {
		name   string
		format SampleFormat
		planes [][]byte
		want   []byte
	}{
		{
			name:   "u8p three channels",
			format: SampleFormatU8P,
			planes: [][]byte{{1, 2}, {3, 4}, {5, 6}},
			want:   []byte{1, 3, 5, 2, 4, 6},
		},
		{
			name:   "s32p stereo",
			format: SampleFormatS32P,
			planes: [][]byte{
				{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17},
				{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27},
			},
			want: []byte{
				0x10, 0x11, 0x12, 0x13, 0x20, 0x21, 0x22, 0x23,
				0x14, 0x15, 0x16, 0x17, 0x24, 0x25, 0x26, 0x27,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := Frame{Format: tc.format, Channels: len(tc.planes), Samples: 2, Planes: tc.planes}
			got, err := f.AppendInterleaved(nil)
			if err != nil {
				t.Fatalf("AppendInterleaved failed: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got % x, want % x", got, tc.want)
			}
			if len(got) != f.Size() {
				t.Errorf("appended %d bytes, Size() = %d", len(got), f.Size())
			}
		})
	}
}

func TestAppendInterleavedRejectsShortPlanes(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
	}{
		{"missing plane", Frame{Format: SampleFormatS16P, Channels: 2, Samples: 1, Planes: [][]byte{{1, 2}}}},
		{"short plane", Frame{Format: SampleFormatS16P, Channels: 2, Samples: 2, Planes: [][]byte{{1, 2, 3, 4}, {1}}}},
		{"short packed", Frame{Format: SampleFormatS16, Channels: 2, Samples: 2, Planes: [][]byte{{1, 2}}}},
		{"no channels", Frame{Format: SampleFormatS16, Samples: 2, Planes: [][]byte{{1, 2}}}},
		{"unknown format", Frame{Format: SampleFormatNone, Channels: 1, Samples: 1, Planes: [][]byte{{1}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dst := []byte{7}
			got, err := tc.frame.AppendInterleaved(dst)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !bytes.Equal(got, dst) {
				t.Errorf("dst modified on error: % x", got)
			}
		})
	}
}

func TestFinishProperties(t *testing.T) {
	p := finishProperties(Properties{
		BitRate:       1411200,
		BitsPerSample: 24,
		Channels:      2,
		Format:        SampleFormatS32P,
	}, 4608)

	if p.Width != 32 {
		t.Errorf("Width = %d, want 32", p.Width)
	}
	if p.Float {
		t.Error("Float = true for integer samples")
	}
	if p.BufferSize != 2*4*4608 {
		t.Errorf("BufferSize = %d, want %d", p.BufferSize, 2*4*4608)
	}
	if p.BitRate != 0 {
		t.Errorf("BitRate = %d, want 0 for a fixed-depth codec", p.BitRate)
	}

	mp3 := finishProperties(Properties{BitRate: 128000, Channels: 2, Format: SampleFormatFltP}, 1152)
	if mp3.BitRate != 128000 {
		t.Errorf("BitRate = %d, want 128000 when no depth is declared", mp3.BitRate)
	}
	if !mp3.Float {
		t.Error("Float = false for fltp")
	}
}
