package phases

import (
	"context"
	"fmt"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// phasePauseSeconds is how long each phase summary stays on screen
// before the next phase starts, unless a key is pressed.
const phasePauseSeconds = 5

// Pipeline runs the four phases in order with their gating rules.
type Pipeline struct {
	Env *Env

	// ConfirmCleanup decides the KFX-ZIP cleanup question during the
	// import phase. Nil means remove without asking.
	ConfirmCleanup ConfirmCleanupFunc

	// Phase entry points, replaceable in tests.
	extract       func(context.Context, *Env) (*ExtractionResult, error)
	configurePlug func(*Env, string, string) error
	importBooks   func(context.Context, *Env, map[string]bool, ConfirmCleanupFunc) (*ImportResult, error)
	convert       func(context.Context, *Env, []string) (*ConversionResult, error)
}

func (pl *Pipeline) init() {
	if pl.extract == nil {
		pl.extract = RunExtraction
	}
	if pl.configurePlug == nil {
		pl.configurePlug = RunPluginConfig
	}
	if pl.importBooks == nil {
		pl.importBooks = RunImport
	}
	if pl.convert == nil {
		pl.convert = RunConversion
	}
}

// Run executes the pipeline and returns the process exit code: 0 when
// the run reached its configured end, 1 when a gating phase failed.
//
// Gating: plugin configuration requires at least one extracted key;
// import runs only when enabled in configuration; conversion runs only
// when enabled and at least one book was accepted by the import.
func (pl *Pipeline) Run(ctx context.Context) int {
	pl.init()
	log := logging.GetLogger("pipeline")
	env := pl.Env

	pl.startPhase(1, "Kindle Key Extraction")
	extraction, err := pl.extract(ctx, env)
	if err != nil {
		ui.Error("Key extraction failed: %v", err)
		return 1
	}
	pl.extractionSummary(extraction)

	if extraction.Stats.Success == 0 {
		ui.Error("No keys were extracted; cannot configure the DeDRM plugin")
		return 1
	}

	pl.startPhase(2, "DeDRM Plugin Configuration")
	if err := pl.configurePlug(env, extraction.DSN, extraction.Tokens); err != nil {
		ui.Error("Plugin configuration failed: %v", err)
		return 1
	}
	ui.PhaseSummary(2, "DeDRM Plugin Configuration", []string{
		"Updated DeDRM plugin configuration (dedrm.json)",
		"Previous configuration backed up",
	})
	pl.pause()

	if !env.Cfg.CalibreImport.Enabled {
		log.Info().Msg("calibre import disabled; pipeline complete")
		ui.Blank()
		ui.OK("All done. Calibre auto-import is disabled in configuration.")
		pl.finalReport(extraction, nil, nil)
		return 0
	}

	pl.startPhase(3, "Calibre Auto-Import")
	excludeASINs := map[string]bool{}
	for _, id := range extraction.Stats.FailedIDs() {
		excludeASINs[id] = true
	}
	imported, err := pl.importBooks(ctx, env, excludeASINs, pl.ConfirmCleanup)
	if err != nil {
		ui.Error("Calibre import failed: %v", err)
		return 1
	}
	pl.importSummary(imported)

	accepted := imported.Stats.AcceptedIDs
	if !env.Cfg.CalibreImport.ConvertToEPUB {
		ui.OK("All done. EPUB conversion is disabled in configuration.")
		pl.finalReport(extraction, imported, nil)
		return 0
	}
	if len(accepted) == 0 {
		ui.Warn("No books were imported; skipping EPUB conversion")
		pl.finalReport(extraction, imported, nil)
		return 0
	}

	pl.startPhase(4, "Imported eBook to EPUB Conversion")
	conversion, err := pl.convert(ctx, env, accepted)
	if err != nil {
		ui.Error("EPUB conversion failed: %v", err)
		return 1
	}
	pl.conversionSummary(conversion)

	ui.OK("All phases complete.")
	pl.finalReport(extraction, imported, conversion)
	return 0
}

// finalReport renders the end-of-run screen: what was accomplished,
// every remaining issue with the affected books, and the extractor
// credits. It pauses for a keypress whenever issues exist, even with
// phase pauses disabled, so problems are not scrolled past.
func (pl *Pipeline) finalReport(extraction *ExtractionResult, imported *ImportResult, conversion *ConversionResult) {
	env := pl.Env
	if env.Cfg != nil && env.Cfg.ClearScreenBetweenPhases {
		ui.ClearScreen()
	}

	ui.Blank()
	ui.OK("Complete automation finished")
	ui.Blank()
	ui.Step("What was accomplished:")
	ui.Info("+ Extracted Kindle keys from %d book(s)", extraction.Stats.Success)
	ui.Info("+ Generated kindlekey.txt (voucher keys)")
	ui.Info("+ Generated kindlekey.k4i (account data)")
	ui.Info("+ Updated DeDRM plugin configuration (backup created)")
	if imported != nil && imported.Stats.Success > 0 {
		ui.Info("+ Imported %d ebook(s) into calibre", imported.Stats.Success)
	}
	if conversion != nil && conversion.Merged > 0 {
		ui.Info("+ Converted and merged %d ebook(s) to EPUB", conversion.Merged)
	}

	hadIssues := false
	hadIssues = issueBlock("Extraction issues", extraction.Stats) || hadIssues
	if imported != nil {
		hadIssues = issueBlock("Import issues", imported.Stats) || hadIssues
	}
	if conversion != nil {
		hadIssues = issueBlock("Conversion issues", conversion.Stats) || hadIssues
	}

	if hadIssues || env.Cfg == nil || !env.Cfg.SkipPhasePauses {
		ui.Blank()
		ui.Countdown(phasePauseSeconds, "Showing credits")
	}

	ui.Blank()
	ui.Step("CREDITS")
	ui.Info("Key extraction is powered by KFXKeyExtractor, created by Satsuoni.")
	ui.Info("https://github.com/Satsuoni")
}

// issueBlock prints one phase's non-success buckets with the affected
// books, capped at five per bucket. Reports true when anything printed.
func issueBlock(title string, stats *batch.Stats) bool {
	if !stats.HasNonSuccess() {
		return false
	}
	ui.Blank()
	ui.Warn("%s:", title)
	detailList("Failed", stats.FailedItems)
	detailList("Timed out", stats.TimedOutItems)
	detailList("Already in the library", stats.DuplicateItems)
	detailList("Skipped", stats.SkippedItems)
	return true
}

func detailList(caption string, items []batch.Detail) {
	if len(items) == 0 {
		return
	}
	ui.Info("%s: %d book(s)", caption, len(items))
	const maxListed = 5
	for i, d := range items {
		if i == maxListed {
			ui.Info("  ... and %d more", len(items)-maxListed)
			break
		}
		ui.Info("  - %s - %s", d.ID, d.Label)
	}
}

func (pl *Pipeline) startPhase(num int, name string) {
	if pl.Env.Cfg != nil && pl.Env.Cfg.ClearScreenBetweenPhases {
		ui.ClearScreen()
	}
	ui.PhaseBanner(num, name)
}

func (pl *Pipeline) pause() {
	if pl.Env.Cfg != nil && pl.Env.Cfg.SkipPhasePauses {
		return
	}
	ui.Countdown(phasePauseSeconds, "Continuing")
}

func (pl *Pipeline) extractionSummary(res *ExtractionResult) {
	points := []string{
		summaryLine("Processed %d book(s) for key extraction", res.Stats.Total),
		summaryLine("Successfully extracted keys from %d book(s)", res.Stats.Success),
		"Kindle auto-update prevention configured",
	}
	points = appendNonSuccess(points, res.Stats)
	ui.PhaseSummary(1, "Key Extraction", points)
	pl.pause()
}

func (pl *Pipeline) importSummary(res *ImportResult) {
	points := []string{
		summaryLine("Imported %d ebook(s) into the calibre library", res.Stats.Success),
		"DeDRM plugin processed all imports automatically",
	}
	points = appendNonSuccess(points, res.Stats)
	ui.PhaseSummary(3, "Calibre Auto-Import", points)
	pl.pause()
}

func (pl *Pipeline) conversionSummary(res *ConversionResult) {
	points := []string{
		summaryLine("Processed %d book(s) for EPUB conversion", res.Stats.Total),
		summaryLine("Successfully converted %d book(s)", res.Stats.Success),
		summaryLine("Merged %d EPUB(s) into calibre", res.Merged),
	}
	if res.Removed > 0 {
		points = append(points, summaryLine("Removed %d source format(s)", res.Removed))
	}
	points = appendNonSuccess(points, res.Stats)
	ui.PhaseSummary(4, "EPUB Conversion", points)
	pl.pause()
}

func appendNonSuccess(points []string, stats *batch.Stats) []string {
	if stats.Failed > 0 {
		points = append(points, summaryLine("Failed: %d book(s) - see the log for details", stats.Failed))
	}
	if stats.TimedOut > 0 {
		points = append(points, summaryLine("Timed out: %d book(s)", stats.TimedOut))
	}
	if stats.Dupes > 0 {
		points = append(points, summaryLine("Already in the library: %d book(s)", stats.Dupes))
	}
	if stats.Skips > 0 {
		points = append(points, summaryLine("Skipped: %d book(s)", stats.Skips))
	}
	return points
}

func summaryLine(format string, n int) string {
	return fmt.Sprintf(format, n)
}
