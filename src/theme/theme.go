// Package theme holds the terminal styles used by the chatrelay CLI.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a set of terminal colors.
type Palette struct {
	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Error     lipgloss.Color
}

// CurrentTheme is the palette used by Default.
var CurrentTheme = Palette{
	Primary:   lipgloss.Color("#00ff00"),
	Accent:    lipgloss.Color("#5fafff"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Error:     lipgloss.Color("#ff5f5f"),
}

// SetTheme sets the current theme
func SetTheme(p Palette) {
	CurrentTheme = p
}

// Styles renders CLI output.
type Styles struct {
	Label     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
}

// Default builds styles from CurrentTheme.
func Default() Styles {
	p := CurrentTheme
	return Styles{
		Label:     lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		User:      lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(p.Error),
	}
}

// Plain returns unstyled output, for pipes and --no-color.
func Plain() Styles {
	s := lipgloss.NewStyle()
	return Styles{Label: s, User: s, Assistant: s, Muted: s, Error: s}
}

// Role returns the style for a turn author.
func (s Styles) Role(role string) lipgloss.Style {
	switch role {
	case "user":
		return s.User
	case "assistant":
		return s.Assistant
	}
	return s.Muted
}
