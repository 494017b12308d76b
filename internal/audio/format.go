package audio

import (
	"fmt"
	"slices"
)

// SampleFormat describes how a decoder stores samples.
// The numbering follows FFmpeg's AVSampleFormat so FFmpeg values convert directly.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = iota - 1
	SampleFormatU8                // unsigned 8-bit interleaved
	SampleFormatS16               // signed 16-bit interleaved
	SampleFormatS32               // signed 32-bit interleaved
	SampleFormatFlt               // 32-bit float interleaved
	SampleFormatDbl               // 64-bit float interleaved
	SampleFormatU8P               // unsigned 8-bit planar
	SampleFormatS16P              // signed 16-bit planar
	SampleFormatS32P              // signed 32-bit planar
	SampleFormatFltP              // 32-bit float planar
	SampleFormatDblP              // 64-bit float planar
	SampleFormatS64               // signed 64-bit interleaved
	SampleFormatS64P              // signed 64-bit planar
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatU8:   "u8",
	SampleFormatS16:  "s16",
	SampleFormatS32:  "s32",
	SampleFormatFlt:  "flt",
	SampleFormatDbl:  "dbl",
	SampleFormatU8P:  "u8p",
	SampleFormatS16P: "s16p",
	SampleFormatS32P: "s32p",
	SampleFormatFltP: "fltp",
	SampleFormatDblP: "dblp",
	SampleFormatS64:  "s64",
	SampleFormatS64P: "s64p",
}

// String returns the FFmpeg short name of the format.
func (f SampleFormat) String() string {
	if name, ok := sampleFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// Valid reports whether f is a known sample format.
func (f SampleFormat) Valid() bool {
	_, ok := sampleFormatNames[f]
	return ok
}

// BytesPerSample returns the storage size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f.Packed() {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatFlt:
		return 4
	case SampleFormatDbl, SampleFormatS64:
		return 8
	}
	return 0
}

// IsPlanar reports whether each channel lives in its own plane.
func (f SampleFormat) IsPlanar() bool {
	switch f {
	case SampleFormatU8P, SampleFormatS16P, SampleFormatS32P,
		SampleFormatFltP, SampleFormatDblP, SampleFormatS64P:
		return true
	}
	return false
}

// IsFloat reports whether samples are IEEE floating point.
func (f SampleFormat) IsFloat() bool {
	switch f.Packed() {
	case SampleFormatFlt, SampleFormatDbl:
		return true
	}
	return false
}

// Packed returns the interleaved counterpart of f. Packed formats return themselves.
func (f SampleFormat) Packed() SampleFormat {
	switch f {
	case SampleFormatU8P:
		return SampleFormatU8
	case SampleFormatS16P:
		return SampleFormatS16
	case SampleFormatS32P:
		return SampleFormatS32
	case SampleFormatFltP:
		return SampleFormatFlt
	case SampleFormatDblP:
		return SampleFormatDbl
	case SampleFormatS64P:
		return SampleFormatS64
	}
	return f
}

// Frame is one unit of decoded PCM audio.
//
// Packed frames carry a single plane holding Samples*Channels interleaved
// samples. Planar frames carry one plane per channel, in channel order.
type Frame struct {
	Format   SampleFormat
	Channels int
	Samples  int // samples per channel
	Planes   [][]byte
}

// Size returns the number of bytes the frame occupies once interleaved.
func (f *Frame) Size() int {
	return f.Samples * f.Channels * f.Format.BytesPerSample()
}

// AppendInterleaved appends the frame to dst as interleaved bytes
// (L R L R ...) and returns the extended slice.
func (f *Frame) AppendInterleaved(dst []byte) ([]byte, error) {
	width := f.Format.BytesPerSample()
	if width == 0 || f.Channels <= 0 {
		return dst, fmt.Errorf("frame has unusable format %s with %d channels", f.Format, f.Channels)
	}
	size := f.Size()

	if !f.Format.IsPlanar() {
		if len(f.Planes) < 1 || len(f.Planes[0]) < size {
			return dst, fmt.Errorf("packed frame holds fewer than %d bytes", size)
		}
		return append(dst, f.Planes[0][:size]...), nil
	}

	planeSize := f.Samples * width
	if len(f.Planes) < f.Channels {
		return dst, fmt.Errorf("planar frame has %d planes for %d channels", len(f.Planes), f.Channels)
	}
	for ch := 0; ch < f.Channels; ch++ {
		if len(f.Planes[ch]) < planeSize {
			return dst, fmt.Errorf("plane %d holds fewer than %d bytes", ch, planeSize)
		}
	}

	start := len(dst)
	dst = slices.Grow(dst, size)[:start+size]
	out := dst[start:]
	stride := f.Channels * width
	for ch := 0; ch < f.Channels; ch++ {
		plane := f.Planes[ch]
		pos := ch * width
		for i := 0; i < planeSize; i += width {
			copy(out[pos:pos+width], plane[i:i+width])
			pos += stride
		}
	}
	return dst, nil
}

// bufferSize returns the largest number of interleaved bytes one decode step
// can produce for the given stream shape.
func bufferSize(channels int, format SampleFormat, frameSamples int) int {
	return channels * format.BytesPerSample() * frameSamples
}
