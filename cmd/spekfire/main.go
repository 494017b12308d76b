package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-multierror"
	"github.com/linuxmatters/spekfire/internal/audio"
	"github.com/linuxmatters/spekfire/internal/cli"
	"github.com/linuxmatters/spekfire/internal/config"
	"github.com/linuxmatters/spekfire/internal/pcm"
	"github.com/linuxmatters/spekfire/internal/ui"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// versionFlag prints the styled version and exits before command validation.
type versionFlag bool

func (v versionFlag) BeforeReset(app *kong.Kong) error {
	cli.PrintVersion(version)
	app.Exit(0)
	return nil
}

var CLI struct {
	Config   string      `help:"YAML configuration file" type:"existingfile" placeholder:"PATH"`
	Backend  string      `help:"Decoder backend: auto, ffmpeg or native (overrides config)" placeholder:"NAME"`
	LogLevel string      `help:"Log level: debug, info, warn or error (overrides config)" placeholder:"LEVEL"`
	Version  versionFlag `help:"Show version information"`

	Info       InfoCmd       `cmd:"" help:"Print stream properties of audio files"`
	Decode     DecodeCmd     `cmd:"" help:"Decode an audio file to raw PCM or WAV"`
	Extensions ExtensionsCmd `cmd:"" help:"List file extensions recognised as audio"`
}

// app carries what every command needs.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	manager *audio.Manager
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("spekfire"),
		kong.Description(cli.Tagline),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	a, err := newApp()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	if err := ctx.Run(a); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// newApp loads the configuration, applies flag overrides and builds the
// decoder manager.
func newApp() (*app, error) {
	cfg := config.Default()
	if CLI.Config != "" {
		loaded, err := config.Load(CLI.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if CLI.Backend != "" {
		cfg.Backend = config.Backend(strings.ToLower(CLI.Backend))
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = config.LogLevel(CLI.LogLevel)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel.Level()}))
	logger.Debug("configuration loaded", "config", cfg.String())

	return &app{
		cfg:     cfg,
		logger:  logger,
		manager: audio.NewManager(audio.ManagerOptions{Config: cfg, Logger: logger}),
	}, nil
}

// InfoCmd probes files concurrently and prints what each one contains.
type InfoCmd struct {
	Paths   []string `arg:"" name:"path" help:"Audio files, or directories to scan" type:"path"`
	Workers int      `short:"j" help:"Files probed concurrently (0 uses the config value)" default:"0"`
}

type probeResult struct {
	path  string
	props audio.Properties
	desc  string
	err   error
}

func (c *InfoCmd) Run(a *app) error {
	paths, err := expandPaths(c.Paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no audio files found")
	}

	workers := a.cfg.Workers
	if c.Workers > 0 {
		workers = min(c.Workers, config.MaxWorkers)
	}

	results := make([]probeResult, len(paths))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			f := a.manager.Open(path)
			defer f.Close()
			results[i] = probeResult{path: path, props: f.Properties(), desc: f.Description(), err: f.Err()}
			return nil
		})
	}
	_ = g.Wait() // probes record their own errors

	var errs *multierror.Error
	for _, r := range results {
		if r.err != nil {
			errs = multierror.Append(errs, r.err)
			continue
		}
		printProperties(r)
	}
	return errs.ErrorOrNil()
}

func printProperties(r probeResult) {
	p := r.props
	var b strings.Builder
	b.WriteString(cli.HighlightStyle.Render(filepath.Base(r.path)))
	b.WriteString("\n")
	b.WriteString(cli.SubtitleStyle.Render(r.desc))
	b.WriteString("\n\n")

	bits := "n/a"
	if p.BitsPerSample > 0 {
		bits = fmt.Sprintf("%d (stored in %d)", p.BitsPerSample, p.Width)
	}
	bitRate := "n/a"
	if p.BitRate > 0 {
		bitRate = fmt.Sprintf("%d bps", p.BitRate)
	}
	b.WriteString(cli.FormatFields([]cli.Field{
		{Key: "Codec", Value: p.CodecName},
		{Key: "Sample rate", Value: fmt.Sprintf("%d Hz", p.SampleRate)},
		{Key: "Channels", Value: fmt.Sprint(p.Channels)},
		{Key: "Bits", Value: bits},
		{Key: "Bit rate", Value: bitRate},
		{Key: "Sample format", Value: p.Format.Packed().String()},
		{Key: "Duration", Value: cli.FormatDuration(time.Duration(p.Duration * float64(time.Second)))},
		{Key: "Buffer size", Value: fmt.Sprintf("%d bytes", p.BufferSize)},
	}))
	cli.PrintBox(b.String())
}

// expandPaths replaces each directory with the audio files beneath it.
// Plain file arguments are kept whatever their extension.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && audio.IsAudioFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
	}
	return paths, nil
}

// DecodeCmd writes the decoded PCM stream of one file.
type DecodeCmd struct {
	Input      string `arg:"" name:"input" help:"Audio file to decode" type:"existingfile"`
	Output     string `short:"o" help:"Output file, - for stdout (default: input name with the format's extension)" placeholder:"PATH"`
	Format     string `help:"Output format: raw or wav" enum:"raw,wav" default:"raw"`
	NoProgress bool   `help:"Disable the progress display"`
}

func (c *DecodeCmd) Run(a *app) error {
	f := a.manager.Open(c.Input)
	defer f.Close()
	if err := f.Err(); err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = strings.TrimSuffix(c.Input, filepath.Ext(c.Input)) + "." + c.Format
	}
	toStdout := output == "-"

	dst, err := c.createOutput(f, output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	var written int64
	if !c.NoProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		written, err = decodeWithProgress(ctx, f, dst, output)
	} else {
		written, err = pcm.Copy(ctx, dst, f, nil)
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("decoding %s interrupted after %s", c.Input, cli.FormatBytes(written))
		}
		return err
	}

	a.logger.Info("decoded", "path", c.Input, "output", output, "bytes", written, "elapsed", time.Since(start))
	if !toStdout && (c.NoProgress || !isatty.IsTerminal(os.Stderr.Fd())) {
		cli.PrintDecodeSummary(output, written, time.Since(start), f.Duration())
	}
	return nil
}

func (c *DecodeCmd) createOutput(f *audio.File, output string) (io.WriteCloser, error) {
	if c.Format == "wav" {
		if output == "-" {
			return nil, errors.New("WAV output needs a file; use --format raw for stdout")
		}
		return pcm.CreateWAV(output, pcmFormat(f))
	}
	if output == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(output)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func pcmFormat(f *audio.File) pcm.Format {
	return pcm.Format{
		SampleRate: f.SampleRate(),
		Channels:   f.Channels(),
		Width:      f.Width(),
		Bits:       f.BitsPerSample(),
		Float:      f.Float(),
	}
}

// decodeWithProgress runs the copy in the background while a Bubbletea
// program on stderr shows progress and channel levels.
func decodeWithProgress(ctx context.Context, f *audio.File, dst io.Writer, output string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	format := pcmFormat(f)
	frameBytes := int64(format.Channels * format.Width / 8)
	model := ui.NewModel(ui.Stream{
		Path:        f.Path(),
		Description: f.Description(),
		Output:      output,
		TotalBytes:  int64(f.Duration()*float64(f.SampleRate())) * frameBytes,
	})
	p := tea.NewProgram(model, tea.WithOutput(os.Stderr))

	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		var lastUpdate time.Time
		n, err := pcm.Copy(ctx, dst, f, func(chunk []byte, total int64) {
			if time.Since(lastUpdate) < 50*time.Millisecond {
				return
			}
			lastUpdate = time.Now()
			p.Send(ui.DecodeProgress{Bytes: total, Elapsed: time.Since(start), Peaks: pcm.Peaks(chunk, format)})
		})
		p.Send(ui.DecodeComplete{Bytes: n, Elapsed: time.Since(start), Err: err})
		done <- result{n, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return 0, fmt.Errorf("running UI: %w", err)
	}

	// The UI also quits on ctrl+c, before the copy has finished.
	cancel()
	r := <-done
	return r.n, r.err
}

// ExtensionsCmd lists the extensions used when scanning directories.
type ExtensionsCmd struct{}

func (c *ExtensionsCmd) Run(a *app) error {
	for _, ext := range audio.Extensions {
		fmt.Println("." + ext)
	}
	return nil
}
