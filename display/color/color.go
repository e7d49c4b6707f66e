// Package color decides how terminal output is styled. It honors NO_COLOR
// (https://no-color.org/) and falls back to plain text when the output is
// a pipe or a file, which also switches row output to tab-separated form.
package color

import (
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// DefaultWidth is assumed when the terminal size cannot be determined.
const DefaultWidth = 80

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShouldDisableColor reports whether styled output to f must be suppressed.
func ShouldDisableColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return !IsTerminal(f)
}

// Apply sets the global lipgloss profile for output to f and reports
// whether color stays enabled.
func Apply(f *os.File) bool {
	if ShouldDisableColor(f) {
		ForceDisable()
		return false
	}
	return true
}

// ForceDisable renders every lipgloss style as plain text.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Width returns the column count of the terminal behind f, then $COLUMNS,
// then DefaultWidth.
func Width(f *os.File) int {
	if f != nil {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w > 0 {
			return w
		}
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return DefaultWidth
}
