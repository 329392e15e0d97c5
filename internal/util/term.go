package util

import (
	"os"

	"github.com/fatih/color"
)

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Interactive reports whether a confirmation prompt can be answered:
// both stdin and stdout are terminals.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// InitColor turns colored output off for --no-color, a set NO_COLOR or
// LIBRACTL_NO_COLOR, or a stdout that is not a terminal.
func InitColor(noColor bool) {
	_, envNoColor := os.LookupEnv("NO_COLOR")
	if !envNoColor {
		_, envNoColor = os.LookupEnv("LIBRACTL_NO_COLOR")
	}
	color.NoColor = noColor || envNoColor || !isTerminal(os.Stdout)
}
