package tui

import (
	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the column width markdown is wrapped at.
const DefaultWordWrap = 80

// NewRenderer returns a function that renders lesson markdown with glamour.
// An empty style detects a light or dark terminal background; "notty" gives plain output.
func NewRenderer(style string, wrap int) (func(string) (string, error), error) {
	if wrap <= 0 {
		wrap = DefaultWordWrap
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
