package audio

import (
	"fmt"
	"strings"
)

// Describe renders p as a single human-readable line, for example
// "FLAC (Free Lossless Audio Codec), 96000 Hz, 24 bits, 1 channel".
// Fields the stream does not report are left out.
func Describe(p Properties) string {
	parts := make([]string, 0, 5)
	if p.CodecName != "" {
		parts = append(parts, p.CodecName)
	}
	if p.BitRate > 0 {
		parts = append(parts, fmt.Sprintf("%d kbps", (p.BitRate+500)/1000))
	}
	if p.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%d Hz", p.SampleRate))
	}
	// Bit depth only means something when there is no bit rate.
	if p.BitsPerSample > 0 && p.BitRate == 0 {
		parts = append(parts, fmt.Sprintf("%d bits", p.BitsPerSample))
	}
	switch {
	case p.Channels == 1:
		parts = append(parts, "1 channel")
	case p.Channels > 1:
		parts = append(parts, fmt.Sprintf("%d channels", p.Channels))
	}
	return strings.Join(parts, ", ")
}
