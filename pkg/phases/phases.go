// Package phases implements the four pipeline phases and the
// orchestrator that gates them: key extraction, DeDRM plugin
// configuration, calibre import, and EPUB conversion.
package phases

import (
	"fmt"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/config"
	"github.com/kfxtools/keyfinder/pkg/paths"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// Env bundles the resolved runtime inputs every phase needs.
type Env struct {
	Paths *paths.Paths
	Cfg   *config.Config

	// KindleDir is the Kindle application directory the extractor runs
	// from, resolved (and temp-copied if needed) before the pipeline
	// starts.
	KindleDir string
}

// ContentDir returns the Kindle content directory: the configured path,
// or the per-user default when none is set.
func (e *Env) ContentDir() string {
	if e.Cfg != nil && e.Cfg.KindleContentPath != "" {
		return e.Cfg.KindleContentPath
	}
	return e.Paths.DefaultContentDir()
}

func (e *Env) hideSensitive() bool {
	return e.Cfg != nil && e.Cfg.HideSensitiveInfo
}

// consoleProgress renders per-item progress lines the way the batch
// runs look on the terminal.
type consoleProgress struct {
	hide bool
}

func (p consoleProgress) ItemStarted(index, total int, item batch.Item) {
	fmt.Printf("[%d/%d] %s... ", index, total, item.DisplayLabel())
}

func (p consoleProgress) ItemFinished(index, total int, item batch.Item, outcome batch.Outcome) {
	switch outcome.Kind {
	case batch.Success:
		if outcome.AcceptedID != "" {
			ui.OK("(ID: %s)", outcome.AcceptedID)
		} else {
			ui.OK("(%.1fs)", outcome.Elapsed.Seconds())
		}
	case batch.Timeout:
		ui.Error("TIMEOUT")
	case batch.Duplicate:
		ui.Warn("SKIPPED - already in the database")
	case batch.Skipped:
		ui.Warn("SKIPPED - %s", outcome.Message)
	default:
		ui.Error("FAILED")
		if outcome.Message != "" {
			ui.Info("%s", ui.Redact(outcome.Message, p.hide))
		}
	}
}

func (p consoleProgress) MergeWarning(item batch.Item, err error) {
	ui.Warn("Could not merge results for %s: %v", item.DisplayLabel(), err)
}

// summarizeReport tells the user where the failure report landed.
func summarizeReport(path string) {
	if path == "" {
		return
	}
	ui.Blank()
	ui.Step("Detailed log saved to:")
	ui.Info("%s", path)
}
