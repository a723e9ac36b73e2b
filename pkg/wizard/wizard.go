// Package wizard runs the interactive pre-flight: configuration
// loading or setup, library validation, Kindle installation resolution,
// and the calibre-must-be-closed check. It produces the resolved
// environment the pipeline runs against.
package wizard

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/calibre"
	"github.com/kfxtools/keyfinder/pkg/config"
	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/kindle"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/paths"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// Saved-settings screen wait before proceeding with the saved
// configuration, shortened when the user opted out of pauses.
const (
	savedConfigCountdown      = 10
	savedConfigCountdownShort = 3
)

// Wizard drives the pre-flight conversation.
type Wizard struct {
	Paths *paths.Paths
	In    *bufio.Reader
}

// Result is the resolved environment the pipeline needs.
type Result struct {
	Cfg *config.Config

	// KindleDir is the Kindle application directory to extract from.
	KindleDir string

	// TempCopy is set when KindleDir is a temporary copy the caller
	// must remove after the run.
	TempCopy bool
}

func New(p *paths.Paths) *Wizard {
	return &Wizard{Paths: p, In: bufio.NewReader(os.Stdin)}
}

// Run walks the full pre-flight. It loops back to the start whenever the
// user chooses to reconfigure, so the pipeline always starts from a
// settled configuration.
func (w *Wizard) Run(ctx context.Context) (*Result, error) {
	log := logging.GetLogger("wizard")

	// Leftovers from an aborted run confuse installation discovery.
	kindle.CleanupLeftovers(w.Paths)

	var cfg *config.Config
	for {
		loaded, reconfigure, err := w.loadOrPrompt()
		if err != nil {
			return nil, err
		}
		if reconfigure {
			log.Debug().Msg("user requested reconfiguration; restarting wizard")
			continue
		}
		cfg = loaded
		break
	}

	if cfg.CalibreImport.Enabled {
		if err := w.ensureLibraryValid(cfg); err != nil {
			return nil, err
		}
		if err := w.ensureCalibreClosed(ctx); err != nil {
			return nil, err
		}
	}

	kindleDir, tempCopy, err := w.resolveKindle()
	if err != nil {
		return nil, err
	}

	return &Result{Cfg: cfg, KindleDir: kindleDir, TempCopy: tempCopy}, nil
}

// loadOrPrompt returns the configuration to run with, or reconfigure
// true when the wizard should start over.
func (w *Wizard) loadOrPrompt() (*config.Config, bool, error) {
	cfgPath := w.Paths.ConfigFile()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		ui.Warn("Could not load saved configuration: %v", err)
		cfg = nil
	}

	if cfg != nil && !cfg.VersionMatches() {
		ui.Warn("Saved configuration is from version %s (current: %s)", cfg.ScriptVersion, config.Version)
		if w.promptYesNo("Delete it and reconfigure?", true) {
			if err := config.Delete(cfgPath); err != nil {
				return nil, false, err
			}
			cfg = nil
		}
	}

	if cfg != nil {
		w.showSummary(cfg)
		seconds := savedConfigCountdown
		if cfg.SkipPhasePauses {
			seconds = savedConfigCountdownShort
		}
		if ui.Countdown(seconds, "Using saved settings") {
			if w.promptYesNo("Reconfigure from scratch?", false) {
				if err := config.Delete(cfgPath); err != nil {
					return nil, false, err
				}
				return nil, true, nil
			}
		}
		return cfg, false, nil
	}

	cfg, restart, err := w.promptSettings()
	if err != nil {
		return nil, false, err
	}
	if restart {
		return nil, true, nil
	}
	if err := cfg.Save(cfgPath); err != nil {
		return nil, false, err
	}
	ui.OK("Configuration saved to: %s", cfgPath)
	return cfg, false, nil
}

// promptSettings collects the full first-time configuration, ending
// with a review screen. Restart true means the user wants to answer
// everything again.
func (w *Wizard) promptSettings() (*config.Config, bool, error) {
	ui.Step("First-time setup")
	ui.Blank()

	out := &config.Config{}
	out.KindleContentPath = w.promptPath("Kindle content folder", w.Paths.DefaultContentDir())
	out.HideSensitiveInfo = w.promptYesNo("Hide sensitive values (DSN, tokens, secrets) in output?", false)
	out.FetchBookTitles = w.promptYesNo("Fetch book titles online for nicer progress output?", false)
	out.ClearScreenBetweenPhases = w.promptYesNo("Clear the screen between phases?", true)
	out.SkipPhasePauses = w.promptYesNo("Skip the pauses between phases?", false)

	ui.Blank()
	out.CalibreImport.Enabled = w.promptYesNo("Import decrypted books into calibre automatically?", true)
	if out.CalibreImport.Enabled {
		out.CalibreImport.LibraryPath = w.promptLibraryPath()
		out.CalibreImport.ConvertToEPUB = w.promptYesNo("Convert imported books to EPUB?", true)
		if out.CalibreImport.ConvertToEPUB {
			if w.promptYesNo("Skip DRM-protected .kfx-zip files during conversion?", false) {
				out.CalibreImport.KFXZipMode = config.KFXZipSkip
			} else {
				out.CalibreImport.KFXZipMode = config.KFXZipConvertAll
			}
			out.CalibreImport.SourceFileManagement = w.promptSourceManagement()
		} else {
			out.CalibreImport.KFXZipMode = config.KFXZipConvertAll
			out.CalibreImport.SourceFileManagement = config.SourceKeepBoth
		}
	}

	ui.Blank()
	w.showSummary(out)
	for {
		switch w.promptChoice("[S]ave these settings, [R]estart setup, or [Q]uit", "S") {
		case "S":
			return out, false, nil
		case "R":
			return nil, true, nil
		case "Q":
			return nil, false, errors.New(errors.ErrConfigInvalid, "setup aborted")
		}
		ui.Error("Invalid choice. Enter S, R, or Q.")
	}
}

func (w *Wizard) promptSourceManagement() string {
	ui.Blank()
	ui.Step("After a successful EPUB conversion, what happens to the source format?")
	ui.Info("[K] Keep both formats (recommended)")
	ui.Info("[D] Delete the source format")
	ui.Info("[S] Delete only .kfx-zip formats")
	for {
		switch w.promptChoice("Your choice (K/D/S)", "K") {
		case "K":
			return config.SourceKeepBoth
		case "D":
			return config.SourceDeleteSource
		case "S":
			return config.SourceDeleteKFXZipOnly
		}
		ui.Error("Invalid choice. Enter K, D, or S.")
	}
}

// promptLibraryPath starts from calibre's last used library and falls
// back to manual entry, validating each candidate.
func (w *Wizard) promptLibraryPath() string {
	if last := calibre.LastUsedLibrary(w.Paths.CalibreGlobalConfig()); last != "" {
		if count, err := calibre.VerifyLibrary(last); err == nil {
			if count >= 0 {
				ui.OK("Last used calibre library: %s (%d books)", last, count)
			} else {
				ui.OK("Last used calibre library: %s", last)
			}
			if w.promptYesNo("Use this library?", true) {
				return last
			}
		}
	} else {
		ui.Warn("Could not find calibre's configuration; enter the library path manually")
	}

	for {
		path := filepath.Clean(w.prompt("Library path (folder containing metadata.db)", ""))
		count, err := calibre.VerifyLibrary(path)
		if err == nil {
			if count >= 0 {
				ui.OK("Library validated: %d books found", count)
			} else {
				ui.OK("Library validated")
			}
			return path
		}
		ui.Error("Invalid library path: %v", err)
	}
}

// ensureLibraryValid revalidates a saved library path, with recovery by
// re-prompting when it no longer checks out.
func (w *Wizard) ensureLibraryValid(cfg *config.Config) error {
	_, err := calibre.VerifyLibrary(cfg.CalibreImport.LibraryPath)
	if err == nil {
		return nil
	}

	ui.Warn("Saved library path is no longer valid: %v", err)
	if !w.promptYesNo("Enter a new library path?", true) {
		return errors.New(errors.ErrLibraryInvalid, "calibre library unavailable")
	}
	cfg.CalibreImport.LibraryPath = w.promptLibraryPath()
	return cfg.Save(w.Paths.ConfigFile())
}

// ensureCalibreClosed loops until no calibre process is running or the
// user gives up. Importing into a library an open calibre holds is
// unsafe.
func (w *Wizard) ensureCalibreClosed(ctx context.Context) error {
	for calibre.IsRunning(ctx) {
		ui.Warn("Calibre appears to be running. Close it before continuing.")
		if !w.promptYesNo("Check again?", true) {
			return errors.New(errors.ErrProcessFailure, "calibre is still running")
		}
	}
	ui.OK("Calibre is not running")
	return nil
}

// resolveKindle locates the Kindle installation and prepares the
// directory the extractor will run against.
func (w *Wizard) resolveKindle() (string, bool, error) {
	inst, err := kindle.Locate(w.Paths)
	if err != nil {
		return "", false, err
	}

	if inst.Conflict {
		ui.Warn("Kindle is installed both per-user (AppData) and globally (Program Files).")
		ui.Info("The per-user copy must be removed so extraction can use a clean temporary copy.")
		if !w.promptYesNo("Delete the AppData copy and continue?", true) {
			return "", false, errors.New(errors.ErrKindleConflict, "conflicting Kindle installations")
		}
		if err := kindle.ResolveConflict(w.Paths); err != nil {
			return "", false, err
		}
	}

	if inst.NeedsTempCopy {
		ui.Step("Creating temporary Kindle copy for extraction...")
		dir, err := kindle.CreateTempCopy(w.Paths, inst.Dir)
		if err != nil {
			return "", false, err
		}
		ui.OK("Temporary copy ready")
		return dir, true, nil
	}
	return inst.Dir, false, nil
}

func (w *Wizard) showSummary(cfg *config.Config) {
	ui.Step("Current Configuration:")
	rows := [][]string{
		{"Kindle Content Path", orNotSet(cfg.KindleContentPath)},
		{"Hide Sensitive Info", yesNo(cfg.HideSensitiveInfo)},
		{"Fetch Book Titles", yesNo(cfg.FetchBookTitles)},
		{"Clear Screen Between Phases", yesNo(cfg.ClearScreenBetweenPhases)},
		{"Skip Phase Pauses", yesNo(cfg.SkipPhasePauses)},
		{"Calibre Import", enabledDisabled(cfg.CalibreImport.Enabled)},
	}
	if cfg.CalibreImport.Enabled {
		rows = append(rows,
			[]string{"Library Path", orNotSet(cfg.CalibreImport.LibraryPath)},
			[]string{"Convert to EPUB", yesNo(cfg.CalibreImport.ConvertToEPUB)},
		)
	}
	ui.KeyValueTable(rows)
	ui.Blank()
}

func (w *Wizard) prompt(label, def string) string {
	if def != "" {
		ui.Info("%s [%s]: ", label, def)
	} else {
		ui.Info("%s: ", label)
	}
	line, err := w.In.ReadString('\n')
	if err != nil && err != io.EOF {
		return def
	}
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	if line == "" {
		return def
	}
	return line
}

func (w *Wizard) promptPath(label, def string) string {
	return filepath.Clean(w.prompt(label, def))
}

func (w *Wizard) promptChoice(label, def string) string {
	return strings.ToUpper(w.prompt(label, def))
}

func (w *Wizard) promptYesNo(label string, def bool) bool {
	defStr := "N"
	if def {
		defStr = "Y"
	}
	for {
		switch w.promptChoice(label+" (Y/N)", defStr) {
		case "Y", "YES":
			return true
		case "N", "NO":
			return false
		}
		ui.Error("Please answer Y or N.")
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func enabledDisabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
