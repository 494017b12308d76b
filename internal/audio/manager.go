package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/linuxmatters/spekfire/internal/config"
)

// headerSize is how many leading bytes backends get to Match on.
const headerSize = 16

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Config config.Config
	// Logger receives backend selection and fallback events. Nil discards them.
	Logger *slog.Logger
}

// Manager opens Files. It holds only read-only configuration, so one
// Manager may open Files from many goroutines at once.
type Manager struct {
	cfg    config.Config
	logger *slog.Logger
	native []Backend
	ffmpeg Backend
}

// NewManager returns a Manager for opts, running the process-wide Init first.
// An invalid Config is logged and replaced by config.Default.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := opts.Config
	if err := config.Validate(cfg); err != nil {
		logger.Warn("invalid decoder configuration, using defaults", "error", err)
		cfg = config.Default()
	}

	Init(cfg.LogLevel.Level())

	return &Manager{
		cfg:    cfg,
		logger: logger,
		native: []Backend{
			&flacBackend{fallbackFrameSamples: cfg.FallbackFrameSamples},
			&mp3Backend{frameSamples: config.MP3FrameSamples},
			&wavBackend{packetSamples: cfg.PCMPacketSamples},
		},
		ffmpeg: &ffmpegBackend{fallbackFrameSamples: cfg.FallbackFrameSamples},
	}
}

// Open probes path and returns a File. It never returns nil: when the file
// cannot be decoded the File is in StateFailed and Err reports why.
func (m *Manager) Open(path string) *File {
	f := &File{path: path, state: StateOpening, logger: m.logger}

	src, err := m.open(path)
	if err != nil {
		f.err = openError(path, err)
		f.state = StateFailed
		m.logger.Debug("open failed", "path", path, "error", err)
		return f
	}

	f.session = newSession(path, src)
	f.state = StateOpened
	props := src.Properties()
	m.logger.Debug("opened",
		"path", path,
		"codec", props.CodecName,
		"sample_rate", props.SampleRate,
		"channels", props.Channels,
		"format", props.Format,
		"buffer_size", props.BufferSize)
	return f
}

func (m *Manager) open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCannotOpenFile, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnknownFormat)
	}

	header, err := readHeader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	candidates := m.candidates(header)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no native decoder recognises the file", ErrUnknownFormat)
	}

	for _, b := range candidates {
		var src Source
		src, err = b.Open(path)
		if err == nil {
			m.logger.Debug("backend selected", "path", path, "backend", b.Name())
			return src, nil
		}
		if !canFallBack(err) {
			return nil, err
		}
		m.logger.Debug("backend declined", "path", path, "backend", b.Name(), "error", err)
	}
	return nil, err
}

// candidates returns the backends to try for a file starting with header, in order.
func (m *Manager) candidates(header []byte) []Backend {
	var natives []Backend
	if m.cfg.Backend != config.BackendFFmpeg {
		for _, b := range m.native {
			if b.Match(header) {
				natives = append(natives, b)
				break
			}
		}
	}

	switch m.cfg.Backend {
	case config.BackendNative:
		return natives
	case config.BackendFFmpeg:
		return []Backend{m.ffmpeg}
	}
	return append(natives, m.ffmpeg)
}

// canFallBack reports whether another backend may succeed where one failed
// with err. A file that cannot be opened at all fails the same way everywhere.
// An ID3 tag with no MPEG frame behind it may front FLAC or ADTS audio.
func canFallBack(err error) bool {
	return errors.Is(err, ErrNoDecoder) || errors.Is(err, ErrBadSampleFormat) || errors.Is(err, errNoMP3Frame)
}

func readHeader(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(fh, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:n], nil
}
