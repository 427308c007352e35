// Package theme holds the lipgloss styles used for CLI output.
package theme

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	Purple       = lipgloss.Color("#A855F7")
	BrightPurple = lipgloss.Color("#C084FC")

	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#9CA3AF")
	DimGray   = lipgloss.Color("#6B7280")

	Green  = lipgloss.Color("#22C55E")
	Yellow = lipgloss.Color("#F59E0B")
	Red    = lipgloss.Color("#EF4444")
	Blue   = lipgloss.Color("#3B82F6")
	Cyan   = lipgloss.Color("#06B6D4")
)

type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Highlighted lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
}

var (
	defaultStyles *Styles
	once          sync.Once
)

// Default returns the shared Styles instance.
func Default() *Styles {
	once.Do(func() {
		defaultStyles = newStyles()
	})
	return defaultStyles
}

func newStyles() *Styles {
	return &Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(White),
		Subtitle:    lipgloss.NewStyle().Bold(true).Foreground(Purple),
		Muted:       lipgloss.NewStyle().Foreground(DimGray),
		Bold:        lipgloss.NewStyle().Bold(true),
		Highlighted: lipgloss.NewStyle().Bold(true).Foreground(BrightPurple),

		Success: lipgloss.NewStyle().Foreground(Green),
		Warning: lipgloss.NewStyle().Foreground(Yellow),
		Error:   lipgloss.NewStyle().Foreground(Red),
		Info:    lipgloss.NewStyle().Foreground(Blue),
	}
}

// Status styles a release or step status.
func (s *Styles) Status(status string) string {
	switch status {
	case "completed":
		return s.Success.Render(status)
	case "failed":
		return s.Error.Render(status)
	case "running":
		return s.Info.Render(status)
	case "skipped":
		return s.Muted.Render(status)
	default:
		return s.Warning.Render(status)
	}
}
