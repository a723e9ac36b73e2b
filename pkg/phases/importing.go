package phases

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/calibre"
	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/kindle"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// ConfirmCleanupFunc decides whether pre-existing KFX-ZIP books get
// removed before the import. Returning false keeps them and switches
// the import to duplicate mode.
type ConfirmCleanupFunc func(books []calibre.FormatRow) bool

// ImportResult carries the import statistics; AcceptedIDs on the stats
// are the calibre book ids that gate the conversion phase.
type ImportResult struct {
	Stats      *batch.Stats
	ReportPath string
}

// RunImport imports every eligible .azw file into the calibre library,
// one calibredb invocation per book. Books whose key extraction failed
// are excluded up front: importing them would only produce unreadable
// library entries.
func RunImport(ctx context.Context, env *Env, excludeASINs map[string]bool, confirmCleanup ConfirmCleanupFunc) (*ImportResult, error) {
	log := logging.GetLogger("phases")
	lib := env.Cfg.CalibreImport.LibraryPath
	db := &calibre.DB{LibraryPath: lib}

	if count, err := calibre.VerifyLibrary(lib); err != nil {
		return nil, err
	} else if count >= 0 {
		ui.Info("Library: %s (%d books)", lib, count)
	} else {
		ui.Info("Library: %s", lib)
	}
	ui.Blank()

	useDuplicates := cleanupKFXZip(ctx, env, db, confirmCleanup)

	if len(excludeASINs) > 0 {
		ui.Warn("Excluding %d book(s) that failed key extraction", len(excludeASINs))
		ui.Blank()
	}

	ui.Step("Scanning for .azw files...")
	files, err := kindle.FindAZWFiles(env.ContentDir(), excludeASINs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		ui.Warn("No .azw files found")
		return &ImportResult{Stats: batch.NewStats(0)}, nil
	}
	ui.OK("Found %d .azw file(s)", len(files))
	ui.Blank()

	items := make([]batch.Item, len(files))
	for i, f := range files {
		base := filepath.Base(f)
		items[i] = batch.Item{
			ID:    strings.TrimSuffix(base, filepath.Ext(base)),
			Label: base,
			Path:  f,
		}
	}

	runner := &batch.Runner{
		Process: func(ctx context.Context, item batch.Item) batch.Outcome {
			res, err := db.Add(ctx, item.Path, useDuplicates)
			switch {
			case err == nil && res.Duplicate:
				return batch.Outcome{Kind: batch.Duplicate, Message: res.Title}
			case err == nil:
				return batch.Outcome{Kind: batch.Success, AcceptedID: res.BookID}
			case errors.IsCode(err, errors.ErrProcessTimeout):
				return batch.Outcome{Kind: batch.Timeout, Message: err.Error()}
			default:
				return batch.Outcome{Kind: batch.Failure, Message: err.Error()}
			}
		},
		Progress: consoleProgress{hide: env.hideSensitive()},
	}

	stats := runner.Run(ctx, items)

	reportPath, err := batch.WriteReport(env.Paths.LogsDir(""), batch.ReportMeta{
		Title:      "CALIBRE IMPORT LOG",
		Root:       lib,
		RootLabel:  "Library",
		Timeout:    executor.DefaultTimeout,
		FilePrefix: "calibre_import",
		Subdir:     "import_logs",
	}, stats)
	if err != nil {
		log.Warn().Err(err).Msg("failed to write import report")
	}
	summarizeReport(reportPath)

	return &ImportResult{Stats: stats, ReportPath: reportPath}, nil
}

// cleanupKFXZip offers to remove pre-existing KFX-ZIP books so freshly
// decrypted versions import cleanly. Returns true when the cleanup was
// declined or failed, which makes the import allow duplicates instead.
func cleanupKFXZip(ctx context.Context, env *Env, db *calibre.DB, confirm ConfirmCleanupFunc) bool {
	ui.Step("Checking for existing KFX-ZIP books...")
	books, err := calibre.KFXZipBooks(db.LibraryPath)
	if err != nil {
		ui.Warn("Could not query KFX-ZIP books: %v", err)
		return true
	}
	if len(books) == 0 {
		return false
	}

	ui.Warn("Found %d book(s) with KFX-ZIP format in the library", len(books))
	if confirm != nil && !confirm(books) {
		ui.Warn("Keeping existing books; importing with duplicates allowed")
		return true
	}

	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.BookID
	}
	ui.Step("Removing %d KFX-ZIP book(s)...", len(ids))
	if err := db.Remove(ctx, ids); err != nil {
		ui.Error("Failed to remove books: %v", err)
		return true
	}
	ui.OK("Removed %d book(s)", len(ids))
	ui.Blank()
	return false
}
