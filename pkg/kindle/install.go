// Package kindle locates the Kindle for PC installation and enumerates
// its downloaded content.
//
// The key extractor only works against a Kindle installation living in
// the per-user AppData location. Global-mode installs (Program Files)
// are handled by creating a temporary AppData copy, marked with a
// TEMP.txt file so leftover copies from aborted runs can be recognized
// and cleaned up.
package kindle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/paths"
)

const kindleExe = "Kindle.exe"

// Installation describes a located Kindle for PC install.
type Installation struct {
	// Dir is the application directory holding Kindle.exe.
	Dir string

	// NeedsTempCopy is set for Program Files installs: the extractor
	// needs a temporary AppData copy before it can run.
	NeedsTempCopy bool

	// Conflict is set when Kindle.exe exists in both locations and the
	// AppData copy carries no TEMP.txt marker. The caller must resolve
	// it (delete the AppData copy or abort) before extraction.
	Conflict bool
}

// Locate searches the two known installation locations. A leftover temp
// copy (AppData with a TEMP.txt marker) is removed before deciding.
func Locate(p *paths.Paths) (Installation, error) {
	log := logging.GetLogger("kindle")

	appDir := p.KindleAppDir()
	pfDir := p.KindleProgramFilesDir()
	appExe := filepath.Join(appDir, kindleExe)
	pfExe := filepath.Join(pfDir, kindleExe)
	marker := filepath.Join(appDir, paths.TempMarkerName)

	appExists := fileExists(appExe)
	pfExists := fileExists(pfExe)

	// A leftover temp copy is not a real installation.
	if appExists && fileExists(marker) {
		log.Warn().Str("dir", appDir).Msg("removing leftover temporary Kindle copy")
		if err := os.RemoveAll(appDir); err != nil {
			return Installation{}, errors.Wrap(err, errors.ErrFileAccess, "failed to remove leftover temp copy")
		}
		appExists = false
	}

	switch {
	case appExists && pfExists:
		return Installation{Dir: pfDir, NeedsTempCopy: true, Conflict: true}, nil
	case appExists:
		return Installation{Dir: appDir}, nil
	case pfExists:
		return Installation{Dir: pfDir, NeedsTempCopy: true}, nil
	default:
		return Installation{}, errors.Newf(errors.ErrKindleNotFound,
			"Kindle.exe not found in %s or %s", appDir, pfDir)
	}
}

// ResolveConflict deletes the AppData copy so the Program Files install
// can be used through a fresh temp copy.
func ResolveConflict(p *paths.Paths) error {
	if err := os.RemoveAll(p.KindleAppDir()); err != nil {
		return errors.Wrap(err, errors.ErrFileAccess, "failed to delete AppData Kindle copy")
	}
	return nil
}

// CreateTempCopy copies a Program Files installation into the AppData
// location and writes the TEMP.txt marker. Returns the copy's directory.
// A partial copy is removed on failure.
func CreateTempCopy(p *paths.Paths, sourceDir string) (string, error) {
	destDir := p.KindleAppDir()

	if err := copyTree(sourceDir, destDir); err != nil {
		_ = os.RemoveAll(destDir)
		return "", errors.Wrap(err, errors.ErrFileAccess, "failed to create temporary Kindle copy")
	}

	marker := filepath.Join(destDir, paths.TempMarkerName)
	content := fmt.Sprintf("Temporary Kindle copy for key extraction\nCreated: %s\nSource: %s\n",
		time.Now().Format(time.RFC3339), sourceDir)
	if err := os.WriteFile(marker, []byte(content), 0644); err != nil {
		_ = os.RemoveAll(destDir)
		return "", errors.Wrap(err, errors.ErrFileWrite, "failed to write temp copy marker")
	}

	return destDir, nil
}

// RemoveTempCopy deletes dir only when it carries the TEMP.txt marker,
// so a real installation is never removed by cleanup.
func RemoveTempCopy(dir string) error {
	if !fileExists(filepath.Join(dir, paths.TempMarkerName)) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, errors.ErrFileAccess, "failed to remove temporary Kindle copy")
	}
	return nil
}

// CleanupLeftovers removes artifacts from previously aborted runs: a
// marked temp install and the extraction scratch directory.
func CleanupLeftovers(p *paths.Paths) {
	log := logging.GetLogger("kindle")

	if err := RemoveTempCopy(p.KindleAppDir()); err != nil {
		log.Warn().Err(err).Msg("could not clean leftover Kindle temp copy")
	}
	if err := os.RemoveAll(p.ScratchDir()); err != nil {
		log.Warn().Err(err).Msg("could not clean leftover scratch directory")
	}
}

// PreventAutoUpdate writes the marker file Kindle for PC checks before
// self-updating. A missing Kindle directory is not an error: there is
// nothing to protect.
func PreventAutoUpdate(p *paths.Paths) error {
	base := p.KindleBaseDir()
	if !dirExists(base) {
		return nil
	}

	content := "This file prevents Kindle for PC from auto-updating.\n" +
		"Created by keyfinder.\n" +
		"Safe to delete if you want to allow auto-updates.\n"
	updates := filepath.Join(base, "updates")
	if err := os.WriteFile(updates, []byte(content), 0644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "could not create auto-update prevention file")
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
