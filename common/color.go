package common

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	ColorReset       = "\033[0m"
	ColorRed         = "\033[31m"
	ColorGreen       = "\033[32m"
	ColorBlue        = "\033[34m"
	ColorYellow      = "\033[33m"
	ColorMagenta     = "\033[35m"
	ColorCyan        = "\033[36m"
	ColorGray        = "\033[90m"
	ColorBrightRed   = "\033[91m"
	ColorBrightGreen = "\033[92m"
	ColorBrightWhite = "\033[97m"
)

var hartPalette = []string{ColorGreen, ColorCyan, ColorYellow, ColorMagenta, ColorBlue, ColorBrightGreen, ColorBrightRed, ColorBrightWhite}

// HartColor picks a stable colour for hart i.
func HartColor(i int) string {
	return hartPalette[i%len(hartPalette)]
}

// IsTerminal reports whether w is a terminal that accepts colour codes.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Colorize wraps s in color when enabled.
func Colorize(enabled bool, color, s string) string {
	if !enabled {
		return s
	}
	return color + s + ColorReset
}
