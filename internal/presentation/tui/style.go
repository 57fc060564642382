package tui

import "github.com/muesli/termenv"

// Error colors s as an error message.
func Error(s string) string {
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color("#f87171")).String()
}

// Success colors s as a confirmation.
func Success(s string) string {
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color("#34d399")).String()
}

// Bold emphasizes s.
func Bold(s string) string {
	return termenv.String(s).Bold().String()
}

// Faint de-emphasizes s.
func Faint(s string) string {
	return termenv.String(s).Faint().String()
}
