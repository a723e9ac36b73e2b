package phases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/calibre"
	"github.com/kfxtools/keyfinder/pkg/config"
	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// ConversionResult carries the conversion phase statistics.
type ConversionResult struct {
	Stats      *batch.Stats
	Merged     int
	Removed    int
	ReportPath string
}

// RunConversion converts each accepted library book to EPUB and merges
// the new format back onto its record. Source formats are then kept or
// removed per the configured source file management mode.
func RunConversion(ctx context.Context, env *Env, bookIDs []string) (*ConversionResult, error) {
	log := logging.GetLogger("phases")
	cal := env.Cfg.CalibreImport
	lib := cal.LibraryPath
	db := &calibre.DB{LibraryPath: lib}
	converter := &calibre.Converter{ScratchDir: env.Paths.ScratchDir()}

	ui.Step("Querying calibre database for book information...")
	books, err := calibre.QueryBookInfo(lib, bookIDs)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, errors.New(errors.ErrLibraryQuery, "no book information found for accepted ids")
	}
	ui.OK("Retrieved information for %d book(s)", len(books))
	ui.Blank()

	items := make([]batch.Item, len(books))
	for i, b := range books {
		items[i] = batch.Item{
			ID:    b.ID,
			Label: fmt.Sprintf("'%s' by %s", b.Title, b.Author),
			Path:  filepath.Join(lib, b.Path),
		}
	}

	result := &ConversionResult{}
	skipKFXZip := cal.KFXZipMode == config.KFXZipSkip

	runner := &batch.Runner{
		Process: func(ctx context.Context, item batch.Item) batch.Outcome {
			source, isKFXZip, found := calibre.SourceFile(item.Path)
			if !found {
				return batch.Outcome{Kind: batch.Failure,
					Message: "no source file (KFX/AZW/AZW3/KFX-ZIP) found"}
			}
			if isKFXZip && skipKFXZip {
				return batch.Outcome{Kind: batch.Skipped,
					Message: "KFX-ZIP file (DRM-protected)"}
			}

			sourcePath := filepath.Join(item.Path, source)
			epubPath := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".epub"

			if err := converter.ToEPUB(ctx, sourcePath, epubPath); err != nil {
				if errors.IsCode(err, errors.ErrProcessTimeout) {
					return batch.Outcome{Kind: batch.Timeout, Message: err.Error()}
				}
				return batch.Outcome{Kind: batch.Failure, Message: err.Error()}
			}

			if err := db.AddFormat(ctx, item.ID, epubPath); err != nil {
				return batch.Outcome{Kind: batch.Failure,
					Message: fmt.Sprintf("converted, but merging the EPUB failed: %v", err)}
			}
			result.Merged++

			removeSourceFormat(ctx, env, db, item.ID, source, isKFXZip, result)
			return batch.Outcome{Kind: batch.Success, AcceptedID: item.ID}
		},
		Progress: consoleProgress{hide: env.hideSensitive()},
	}

	result.Stats = runner.Run(ctx, items)

	reportPath, err := batch.WriteReport(env.Paths.LogsDir(""), batch.ReportMeta{
		Title:      "CALIBRE KFX TO EPUB CONVERSION LOG",
		Root:       lib,
		RootLabel:  "Library",
		Timeout:    executor.ConvertTimeout,
		FilePrefix: "calibre_conversion",
		Subdir:     "conversion_logs",
	}, result.Stats)
	if err != nil {
		log.Warn().Err(err).Msg("failed to write conversion report")
	}
	result.ReportPath = reportPath
	summarizeReport(reportPath)

	// Conversion intermediates are no longer needed.
	if err := os.RemoveAll(env.Paths.ScratchDir()); err != nil {
		log.Warn().Err(err).Msg("could not clean conversion scratch directory")
	}

	return result, nil
}

// removeSourceFormat applies the configured source file management mode
// after a successful merge. A removal failure is a warning, never a
// conversion failure.
func removeSourceFormat(ctx context.Context, env *Env, db *calibre.DB, bookID, source string, isKFXZip bool, result *ConversionResult) {
	switch env.Cfg.CalibreImport.SourceFileManagement {
	case config.SourceDeleteSource:
		format := strings.ToUpper(strings.TrimPrefix(filepath.Ext(source), "."))
		if err := db.RemoveFormat(ctx, bookID, format); err != nil {
			ui.Warn("Failed to remove %s format: %v", format, err)
			return
		}
		result.Removed++
	case config.SourceDeleteKFXZipOnly:
		if !isKFXZip {
			return
		}
		if err := db.RemoveFormat(ctx, bookID, "KFX-ZIP"); err != nil {
			ui.Warn("Failed to remove KFX-ZIP format: %v", err)
			return
		}
		result.Removed++
	}
}
