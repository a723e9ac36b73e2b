package phases

import (
	"context"
	"os"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/calibre"
	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/keys"
	"github.com/kfxtools/keyfinder/pkg/kindle"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// ExtractionResult carries the phase statistics plus the account
// identifiers captured from the first successful extraction, which seed
// the plugin configuration phase.
type ExtractionResult struct {
	Stats      *batch.Stats
	DSN        string
	Tokens     string
	ReportPath string
}

// RunExtraction processes every book folder under the content directory
// through the external key extractor, merging each successful result
// into the accumulated key files before the next book starts.
func RunExtraction(ctx context.Context, env *Env) (*ExtractionResult, error) {
	log := logging.GetLogger("phases")
	p := env.Paths

	extractorPath, err := p.ExtractorPath()
	if err != nil {
		return nil, err
	}

	contentDir := env.ContentDir()
	folders, err := kindle.ScanBookFolders(contentDir)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, errors.Newf(errors.ErrPathNotFound, "no book folders found in %s", contentDir)
	}
	ui.OK("Found %d book folder(s)", len(folders))
	ui.Blank()

	if err := os.MkdirAll(p.KeysDir(), 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrDirCreate, "failed to create keys directory")
	}

	items := make([]batch.Item, len(folders))
	for i, folder := range folders {
		label := folder.ASIN
		if env.Cfg != nil && env.Cfg.FetchBookTitles {
			label = calibre.FetchTitle(ctx, folder.ASIN)
		}
		items[i] = batch.Item{ID: folder.ASIN, Label: label, Path: folder.Path}
	}

	outKey := p.VoucherKeyFile()
	outK4I := p.K4IFile()
	tempKey := outKey + ".temp"
	tempK4I := outK4I + ".temp"
	extractor := keys.NewExtractor(extractorPath, env.KindleDir, p.ScratchDir())

	result := &ExtractionResult{}

	runner := &batch.Runner{
		Process: func(ctx context.Context, item batch.Item) batch.Outcome {
			for _, f := range []string{tempKey, tempK4I} {
				if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
					log.Warn().Err(err).Str("file", f).Msg("could not remove stale temp key file")
				}
			}

			ext, err := extractor.ExtractBook(ctx, item.Path, tempKey, tempK4I)
			switch {
			case err == nil:
				if result.DSN == "" {
					result.DSN = ext.DSN
					result.Tokens = ext.Tokens
				}
				return batch.Outcome{Kind: batch.Success}
			case errors.IsCode(err, errors.ErrProcessTimeout):
				return batch.Outcome{Kind: batch.Timeout, Message: err.Error()}
			default:
				return batch.Outcome{Kind: batch.Failure, Message: err.Error()}
			}
		},
		AfterSuccess: func(item batch.Item, _ batch.Outcome) error {
			if err := keys.Merge(outKey, outK4I, tempKey, tempK4I); err != nil {
				return err
			}
			for _, f := range []string{tempKey, tempK4I} {
				if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
					log.Warn().Err(err).Str("file", f).Msg("could not remove merged temp key file")
				}
			}
			return nil
		},
		Progress: consoleProgress{hide: env.hideSensitive()},
	}

	result.Stats = runner.Run(ctx, items)

	reportPath, err := batch.WriteReport(p.LogsDir(""), batch.ReportMeta{
		Title:      "KINDLE KEY EXTRACTION LOG",
		Root:       contentDir,
		RootLabel:  "Content Directory",
		Timeout:    executor.DefaultTimeout,
		FilePrefix: "key_extraction",
		Subdir:     "extraction_logs",
	}, result.Stats)
	if err != nil {
		log.Warn().Err(err).Msg("failed to write extraction report")
	}
	result.ReportPath = reportPath
	summarizeReport(reportPath)

	// Keep Kindle from updating itself past what the extractor supports.
	if err := kindle.PreventAutoUpdate(p); err != nil {
		ui.Warn("Could not configure Kindle auto-update prevention: %v", err)
	}

	return result, nil
}
