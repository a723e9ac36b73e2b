// Package ui renders keyfinder's interactive terminal output: status
// lines, phase banners, configuration tables, and the countdown prompt.
package ui

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// interactive reports whether stdout is a terminal. Styling is skipped
// when output is redirected.
func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func init() {
	if !interactive() {
		pterm.DisableColor()
	}
}

// Step prints an in-progress action line.
func Step(format string, args ...any) {
	pterm.FgCyan.Printfln("==> "+format, args...)
}

// OK prints a success line.
func OK(format string, args ...any) {
	pterm.FgGreen.Printfln("[OK] "+format, args...)
}

// Warn prints a warning line.
func Warn(format string, args ...any) {
	pterm.FgYellow.Printfln("[!] "+format, args...)
}

// Error prints an error line.
func Error(format string, args ...any) {
	pterm.FgRed.Printfln("[X] "+format, args...)
}

// Info prints an unstyled detail line, indented under the current step.
func Info(format string, args ...any) {
	pterm.Printfln("    "+format, args...)
}

// Blank prints an empty line.
func Blank() {
	pterm.Println()
}

// KeyValueTable renders a two-column settings table.
func KeyValueTable(rows [][]string) {
	data := pterm.TableData{{"Setting", "Value"}}
	data = append(data, rows...)
	// Render errors only occur on broken writers; output is best-effort.
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
