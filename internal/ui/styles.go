// Package ui renders pushy's terminal output.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Mschirtzinger/pushy/internal/push"
)

// Palette colours, picked for both light and dark terminals.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
)

// Styles is a set of styles bound to one output.
type Styles struct {
	Renderer *lipgloss.Renderer
	Header   lipgloss.Style
	Accent   lipgloss.Style
	Pass     lipgloss.Style
	Warn     lipgloss.Style
	Fail     lipgloss.Style
	Muted    lipgloss.Style
	Border   lipgloss.Style
}

// NewStyles detects the colour support of w. NO_COLOR, or a w that is not a
// terminal, yields plain text.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w, termenv.WithColorCache(true))
	if termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return newStyles(r)
}

// PlainStyles renders without any escape sequences.
func PlainStyles() Styles {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return newStyles(r)
}

// Stdout returns styles for standard output.
func Stdout() Styles {
	return NewStyles(os.Stdout)
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Renderer: r,
		Header:   r.NewStyle().Bold(true).Foreground(ColorAccent),
		Accent:   r.NewStyle().Foreground(ColorAccent),
		Pass:     r.NewStyle().Foreground(ColorPass),
		Warn:     r.NewStyle().Foreground(ColorWarn),
		Fail:     r.NewStyle().Foreground(ColorFail).Bold(true),
		Muted:    r.NewStyle().Foreground(ColorMuted),
		Border:   r.NewStyle().Foreground(ColorMuted),
	}
}

// Result returns the style for a push result.
func (s Styles) Result(r push.Result) lipgloss.Style {
	switch r {
	case push.Pushed:
		return s.Pass
	case push.Skipped:
		return s.Warn
	case push.Failed:
		return s.Fail
	default:
		return s.Muted
	}
}
