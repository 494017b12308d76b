package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Fields missing from the document keep their default values.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg Config) error {
	var errs []error

	if !cfg.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("backend %q is invalid; valid values: auto, ffmpeg, native", cfg.Backend))
	}
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.PCMPacketSamples <= 0 {
		errs = append(errs, fmt.Errorf("pcm_packet_samples must be positive, got %d", cfg.PCMPacketSamples))
	}
	if cfg.FallbackFrameSamples <= 0 {
		errs = append(errs, fmt.Errorf("fallback_frame_samples must be positive, got %d", cfg.FallbackFrameSamples))
	}
	if cfg.Workers < 1 || cfg.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, cfg.Workers))
	}

	return errors.Join(errs...)
}
