package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Fire colour palette 🔥
var (
	// Core fire colours (dark to bright)
	fireYellow  = lipgloss.Color("#FFD700") // Bright yellow
	fireOrange  = lipgloss.Color("#FF8C00") // Deep orange
	fireRed     = lipgloss.Color("#FF4500") // Orange-red
	fireCrimson = lipgloss.Color("#DC143C") // Deep crimson
	emberGlow   = lipgloss.Color("#8B0000") // Dark ember red

	// Accent colours
	warmGray = lipgloss.Color("#B8860B") // Dark goldenrod for subtle text
)

// Stream identifies the file being decoded.
type Stream struct {
	Path        string
	Description string
	Output      string
	// TotalBytes is the expected PCM size from the stream duration, 0 if unknown.
	TotalBytes int64
}

// DecodeProgress reports PCM bytes written so far.
type DecodeProgress struct {
	Bytes   int64
	Elapsed time.Duration
	Peaks   []float64 // per-channel peak of the latest chunk, 0..1
}

// DecodeComplete signals the end of decoding, successful or not.
type DecodeComplete struct {
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model is the Bubbletea model for the decode progress view.
type Model struct {
	progressBar progress.Model
	stream      Stream

	state    DecodeProgress
	complete *DecodeComplete

	startTime       time.Time
	width           int
	completionDelay time.Duration
}

// NewModel creates a decode progress model for stream.
func NewModel(stream Stream) *Model {
	// Fire gradient: deep red → orange → yellow
	p := progress.New(
		progress.WithGradient(string(fireCrimson), string(fireYellow)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		stream:          stream,
		startTime:       time.Now(),
		completionDelay: 500 * time.Millisecond,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case DecodeProgress:
		m.state = msg
		return m, nil

	case DecodeComplete:
		m.complete = &msg
		m.state.Bytes = msg.Bytes
		return m, tea.Tick(m.completionDelay, func(t time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m *Model) View() string {
	if m.complete != nil {
		return m.renderComplete()
	}
	return m.renderProgress()
}

// fraction returns how much of the stream is done, or -1 when unknown.
func (m *Model) fraction() float64 {
	if m.stream.TotalBytes <= 0 {
		return -1
	}
	return min(1, float64(m.state.Bytes)/float64(m.stream.TotalBytes))
}

func (m *Model) renderProgress() string {
	var s strings.Builder

	// Title
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(fireYellow).
		Render("Spekfire 🔥")

	s.WriteString(title)
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Foreground(fireOrange).Render("Decoding " + m.stream.Path))
	s.WriteString("\n")
	if m.stream.Description != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(warmGray).Render(m.stream.Description))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	elapsed := m.state.Elapsed
	if elapsed == 0 {
		elapsed = time.Since(m.startTime)
	}

	if pct := m.fraction(); pct >= 0 {
		s.WriteString("Progress: ")
		s.WriteString(m.progressBar.ViewAs(pct))
		s.WriteString(fmt.Sprintf("  %d%%", int(pct*100)))
		s.WriteString("\n\n")

		var eta time.Duration
		if pct > 0 {
			eta = time.Duration(float64(elapsed)/pct) - elapsed
		}
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("Time: %s  │  Written: %s  │  ETA: %s",
				formatDuration(elapsed), formatBytes(m.state.Bytes), formatDuration(eta))))
	} else {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("Decoding...  %s  │  Elapsed: %s", formatBytes(m.state.Bytes), formatDuration(elapsed))))
	}

	if len(m.state.Peaks) > 0 {
		s.WriteString("\n\n")
		s.WriteString(lipgloss.NewStyle().Foreground(fireOrange).Render("Levels:"))
		s.WriteString("\n")
		s.WriteString(renderMeters(m.state.Peaks, 30))
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(fireRed).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) renderComplete() string {
	var s strings.Builder
	dimLabel := lipgloss.NewStyle().Faint(true)

	if m.complete.Err != nil {
		s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(fireCrimson).Render("✗ Decoding Failed"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("%s%v\n", dimLabel.Render("Error:    "), m.complete.Err))
	} else {
		s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(fireYellow).Render("✓ Decoding Complete!"))
		s.WriteString("\n\n")
	}

	if m.stream.Output != "" {
		s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Output:   "), m.stream.Output))
	}
	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Written:  "), formatBytes(m.complete.Bytes)))
	s.WriteString(fmt.Sprintf("%s%s", dimLabel.Render("Time:     "), formatDuration(m.complete.Elapsed)))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(fireOrange).
		Padding(1, 1).
		Render(s.String()) + "\n"
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[min(exp, len(units)-1)])
}

// renderMeters draws one fire-coloured level bar per channel.
func renderMeters(peaks []float64, width int) string {
	rows := make([]string, len(peaks))
	for ch, peak := range peaks {
		rows[ch] = fmt.Sprintf("%2d %s", ch+1, makeSparkline(peak, width))
	}
	return strings.Join(rows, "\n")
}

func makeSparkline(ratio float64, width int) string {
	filled := max(0, min(width, int(ratio*float64(width))))

	var result strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			// Fire gradient: dark red → red → orange → yellow based on position
			pos := float64(i) / float64(width)
			var color lipgloss.Color
			if pos < 0.25 {
				color = emberGlow
			} else if pos < 0.5 {
				color = fireCrimson
			} else if pos < 0.75 {
				color = fireOrange
			} else {
				color = fireYellow
			}
			result.WriteString(lipgloss.NewStyle().Foreground(color).Render("█"))
		} else {
			result.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A")).Render("░"))
		}
	}

	return result.String()
}
