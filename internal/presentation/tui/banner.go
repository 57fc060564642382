package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the toolbox banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _              _ _               ", "#34d399"},
		{"| |_ ___   ___ | | |__   _____  __", "#2dd4bf"},
		{"| __/ _ \\ / _ \\| | '_ \\ / _ \\ \\/ /", "#22d3ee"},
		{"| || (_) | (_) | | |_) | (_) >  < ", "#38bdf8"},
		{" \\__\\___/ \\___/|_|_.__/ \\___/_/\\_\\", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
