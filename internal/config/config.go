package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Decoder settings
const (
	// PCMPacketSamples is how many samples per channel the native WAV source
	// reads per packet.
	PCMPacketSamples = 4096

	// FallbackFrameSamples sizes the read buffer when a codec reports no
	// frame size (e.g. raw PCM through FFmpeg). Matches FLAC's largest block.
	FallbackFrameSamples = 65536

	// MP3FrameSamples is the fixed MPEG-1 Layer III frame length.
	MP3FrameSamples = 1152
)

// CLI settings
const (
	DefaultWorkers = 4
	MaxWorkers     = 64
)

// Backend selects which decoders Open may use.
type Backend string

const (
	BackendAuto   Backend = "auto"   // native decoders by magic bytes, FFmpeg for the rest
	BackendFFmpeg Backend = "ffmpeg" // FFmpeg only
	BackendNative Backend = "native" // pure Go decoders only (FLAC, MP3, WAV)
)

// IsValid reports whether b names a known backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendAuto, BackendFFmpeg, BackendNative:
		return true
	}
	return false
}

// LogLevel is a slog level name.
type LogLevel string

// IsValid reports whether l is one of debug, info, warn or error.
func (l LogLevel) IsValid() bool {
	switch strings.ToLower(string(l)) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Level converts l to a slog.Level, defaulting to warn.
func (l LogLevel) Level() slog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Config holds user tunables, loaded from YAML and overridden by flags.
type Config struct {
	Backend              Backend  `yaml:"backend"`
	LogLevel             LogLevel `yaml:"log_level"`
	PCMPacketSamples     int      `yaml:"pcm_packet_samples"`
	FallbackFrameSamples int      `yaml:"fallback_frame_samples"`
	Workers              int      `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:              BackendAuto,
		LogLevel:             "warn",
		PCMPacketSamples:     PCMPacketSamples,
		FallbackFrameSamples: FallbackFrameSamples,
		Workers:              DefaultWorkers,
	}
}

// String renders the config for debug logging.
func (c Config) String() string {
	return fmt.Sprintf("backend=%s log_level=%s pcm_packet_samples=%d fallback_frame_samples=%d workers=%d",
		c.Backend, c.LogLevel, c.PCMPacketSamples, c.FallbackFrameSamples, c.Workers)
}
