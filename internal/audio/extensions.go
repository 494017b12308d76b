package audio

import (
	"path/filepath"
	"slices"
	"strings"
)

// Extensions lists the conventional audio file extensions, without the dot.
// It only filters user-facing file lists; decoding always probes content.
var Extensions = []string{
	"3gp", "aac", "aif", "aifc", "aiff", "amr", "awb", "ape", "au", "dts",
	"flac", "gsm", "m4a", "m4p", "mp3", "mp4", "mp+", "mpc", "mpp", "oga",
	"ogg", "ra", "ram", "snd", "wav", "wma", "wv",
}

// IsAudioFile reports whether path carries one of Extensions, ignoring case.
func IsAudioFile(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	return slices.Contains(Extensions, strings.ToLower(ext))
}
