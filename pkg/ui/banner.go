package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"}).
			Border(lipgloss.DoubleBorder()).
			Padding(0, 2)

	phaseStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "22", Dark: "48"}).
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)
)

// Banner prints the program banner with its version.
func Banner(version string) {
	fmt.Println(bannerStyle.Render(fmt.Sprintf("Kindle Key Finder  v%s", version)))
	fmt.Println()
}

// PhaseBanner announces the start of a pipeline phase.
func PhaseBanner(num int, name string) {
	fmt.Println(phaseStyle.Render(fmt.Sprintf("PHASE %d: %s", num, name)))
	fmt.Println()
}

// PhaseSummary prints the closing summary of a phase as a bullet list.
func PhaseSummary(num int, name string, points []string) {
	Blank()
	pterm.FgCyan.Printfln("Phase %d complete: %s", num, name)
	items := make([]pterm.BulletListItem, len(points))
	for i, p := range points {
		items[i] = pterm.BulletListItem{Level: 0, Text: p}
	}
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}
