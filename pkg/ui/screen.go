package ui

import (
	"github.com/muesli/termenv"
)

// ClearScreen clears the terminal between phases. No-op when stdout is
// not a terminal.
func ClearScreen() {
	if !interactive() {
		return
	}
	output := termenv.DefaultOutput()
	output.ClearScreen()
	output.MoveCursor(1, 1)
}
