package output

import (
	"os"

	"golang.org/x/term"

	"github.com/harborml/skiff/internal/health"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		// Check if writer is a file and if it's a terminal
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// ColorizeStatus adds color to a health status string.
func ColorizeStatus(status health.Status, text string) string {
	switch status {
	case health.StatusHealthy:
		return colorGreen + text + colorReset
	case health.StatusUnhealthy:
		return colorRed + text + colorReset
	case health.StatusUnknown:
		return colorGray + text + colorReset
	default:
		return text
	}
}

// ColorizeWarning renders advisory text in yellow.
func ColorizeWarning(text string) string {
	return colorYellow + text + colorReset
}
