package ui

import (
	"fmt"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/pterm/pterm"
)

// Countdown shows a ticking prompt for the given number of seconds and
// returns true when the user pressed a key before it expired. When
// stdin is not interactive the countdown is skipped and false returned,
// as if it ran out.
func Countdown(seconds int, message string) bool {
	if !interactive() {
		return false
	}

	pressed := make(chan struct{}, 1)
	go func() {
		// Listen returns when the handler stops it or stdin closes.
		_ = keyboard.Listen(func(key keys.Key) (bool, error) {
			pressed <- struct{}{}
			return true, nil
		})
	}()
	defer keyboard.SimulateKeyPress(keys.Escape)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seconds
	for remaining > 0 {
		fmt.Printf("\r%s (%d seconds, press any key) ", message, remaining)
		select {
		case <-pressed:
			clearLine()
			return true
		case <-ticker.C:
			remaining--
		}
	}
	clearLine()
	pterm.FgGreen.Printfln("[OK] Proceeding automatically")
	return false
}

func clearLine() {
	fmt.Printf("\r%s\r", "                                                            ")
}
