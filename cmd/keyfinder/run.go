package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/calibre"
	"github.com/kfxtools/keyfinder/pkg/config"
	"github.com/kfxtools/keyfinder/pkg/kindle"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/paths"
	"github.com/kfxtools/keyfinder/pkg/phases"
	"github.com/kfxtools/keyfinder/pkg/ui"
	"github.com/kfxtools/keyfinder/pkg/wizard"
)

var errPreflight = errors.New("pre-flight checks failed")

var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	return stdin.ReadString('\n')
}

func newPaths() (*paths.Paths, error) {
	return paths.New("")
}

// runPipeline is the root command's action: pre-flight wizard, then the
// four pipeline phases. Returns the process exit code.
func runPipeline(ctx context.Context) int {
	log := logging.GetLogger("main")

	if !windowsOnly() {
		printOSGateHelp()
		return 1
	}

	p, err := newPaths()
	if err != nil {
		ui.Error("%v", err)
		return 1
	}

	ui.Banner(config.Version)
	log.Info().Str("log_file", logging.LogFilePath()).Msg("keyfinder starting")

	if resetConfig {
		if err := config.Delete(p.ConfigFile()); err != nil {
			ui.Error("Could not delete configuration: %v", err)
			return 1
		}
		ui.OK("Saved configuration deleted")
	}

	wz := wizard.New(p)
	var res *wizard.Result
	if skipWizard {
		res, err = preflightWithoutWizard(p)
	} else {
		res, err = wz.Run(ctx)
	}
	if err != nil {
		ui.Error("Pre-flight failed: %v", err)
		return 1
	}
	if res.TempCopy {
		defer func() {
			if err := kindle.RemoveTempCopy(res.KindleDir); err != nil {
				log.Warn().Err(err).Msg("could not remove temporary Kindle copy")
			}
		}()
	}

	pipeline := &phases.Pipeline{
		Env: &phases.Env{
			Paths:     p,
			Cfg:       res.Cfg,
			KindleDir: res.KindleDir,
		},
		ConfirmCleanup: confirmKFXCleanup,
	}
	return pipeline.Run(ctx)
}

// preflightWithoutWizard resolves the environment from saved state
// only, for unattended runs.
func preflightWithoutWizard(p *paths.Paths) (*wizard.Result, error) {
	cfg, err := config.Load(p.ConfigFile())
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		ui.Error("No saved configuration; run once without --no-wizard first")
		return nil, errPreflight
	}

	kindle.CleanupLeftovers(p)
	inst, err := kindle.Locate(p)
	if err != nil {
		return nil, err
	}
	if inst.Conflict {
		ui.Error("Conflicting Kindle installations; resolve interactively first")
		return nil, errPreflight
	}

	dir := inst.Dir
	tempCopy := false
	if inst.NeedsTempCopy {
		dir, err = kindle.CreateTempCopy(p, inst.Dir)
		if err != nil {
			return nil, err
		}
		tempCopy = true
	}
	return &wizard.Result{Cfg: cfg, KindleDir: dir, TempCopy: tempCopy}, nil
}

// confirmKFXCleanup shows the KFX-ZIP books found in the library and
// asks whether to remove them before importing.
func confirmKFXCleanup(books []calibre.FormatRow) bool {
	ui.Blank()
	ui.Info("These books may be DRM-protected versions that failed to decrypt.")
	ui.Info("Removing them allows a clean import of the newly decrypted versions.")
	ui.Blank()
	for _, b := range books {
		ui.Info("  [%s] %s", b.BookID, b.Name)
	}
	ui.Blank()
	return promptYesNoStdin("Remove these books before importing?", true)
}

func promptYesNoStdin(label string, def bool) bool {
	defStr := "N"
	if def {
		defStr = "Y"
	}
	for {
		ui.Info("%s (Y/N) [%s]: ", label, defStr)
		line, err := readLine()
		if err != nil {
			return def
		}
		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "":
			return def
		case "Y", "YES":
			return true
		case "N", "NO":
			return false
		}
		ui.Error("Please answer Y or N.")
	}
}
