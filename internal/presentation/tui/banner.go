package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` _              _                   `, "#34d399"},
	{`| | ___  ___ __| |_ ___ _ __ _ __   `, "#2dd4bf"},
	{`| |/ _ \/ __/ _|  _/ -_) '_ | '_ \  `, "#22d3ee"},
	{`|_|\___/\___\__|\__\___|_|  |_| |_| `, "#38bdf8"},
}

// PrintBanner writes the lectern banner and the course being opened to w.
// Colors degrade to plain text when w is not a terminal.
func PrintBanner(w io.Writer, course, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  %s · %s", course, version)).Faint())
	fmt.Fprintln(w)
}
