package pcm

import (
	"encoding/binary"
	"math"
)

// Peaks returns the absolute peak of each channel in an interleaved chunk,
// normalised to 0..1. A trailing partial frame is ignored. It returns nil
// for a format it cannot interpret.
func Peaks(chunk []byte, f Format) []float64 {
	width := f.Width / 8
	if f.Channels <= 0 || width <= 0 {
		return nil
	}
	sample := sampleReader(f)
	if sample == nil {
		return nil
	}

	peaks := make([]float64, f.Channels)
	frameBytes := width * f.Channels
	for off := 0; off+frameBytes <= len(chunk); off += frameBytes {
		for ch := range peaks {
			v := math.Abs(sample(chunk[off+ch*width:]))
			if v > peaks[ch] {
				peaks[ch] = v
			}
		}
	}
	for ch := range peaks {
		peaks[ch] = min(peaks[ch], 1)
	}
	return peaks
}

// sampleReader returns a decoder for one sample of f scaled to -1..1.
func sampleReader(f Format) func([]byte) float64 {
	switch {
	case f.Float && f.Width == 32:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	case f.Float && f.Width == 64:
		return func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	case f.Float:
		return nil
	case f.Width == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }
	case f.Width == 16:
		return func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / math.MaxInt16
		}
	case f.Width == 32:
		return func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b))) / math.MaxInt32
		}
	}
	return nil
}
