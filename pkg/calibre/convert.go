package calibre

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/logging"
)

// epubFlags tune ebook-convert for readable reflowable output.
var epubFlags = []string{
	"--input-profile=default",
	"--output-profile=tablet",
	"--no-svg-cover",
	"--epub-version=3",
}

var mobiFlags = []string{
	"--input-profile=default",
	"--output-profile=tablet",
}

// sourceExts are the Kindle formats eligible as conversion sources, in
// no preference order; the first match in directory order wins.
var sourceExts = []string{".kfx", ".azw", ".azw3", ".kfx-zip"}

// Converter drives ebook-convert. ScratchDir holds the MOBI
// intermediate for AZW3 conversions; conversions run sequentially so a
// fixed intermediate filename is safe.
type Converter struct {
	ScratchDir string
}

// SourceFile finds the conversion source in a library book directory.
// Returns the filename, whether it is a .kfx-zip, and whether anything
// was found.
func SourceFile(bookDir string) (string, bool, bool) {
	entries, err := os.ReadDir(bookDir)
	if err != nil {
		return "", false, false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		for _, ext := range sourceExts {
			if strings.HasSuffix(name, ext) {
				return e.Name(), strings.HasSuffix(name, ".kfx-zip"), true
			}
		}
	}
	return "", false, false
}

// ToEPUB converts source into an EPUB at dest. AZW3 sources route
// through a MOBI intermediate, which preserves layout better than the
// direct conversion.
func (c *Converter) ToEPUB(ctx context.Context, source, dest string) error {
	if strings.HasSuffix(strings.ToLower(source), ".azw3") {
		return c.azw3ViaMOBI(ctx, source, dest)
	}
	return c.convert(ctx, source, dest, epubFlags)
}

func (c *Converter) azw3ViaMOBI(ctx context.Context, source, dest string) error {
	log := logging.GetLogger("calibre")

	if err := os.MkdirAll(c.ScratchDir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create conversion scratch directory")
	}
	mobi := filepath.Join(c.ScratchDir, "temp_conversion.mobi")
	defer func() {
		if err := os.Remove(mobi); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("could not remove intermediate MOBI file")
		}
	}()

	// Timeouts pass through unwrapped so the caller still classifies
	// them as timeouts, not generic failures.
	if err := c.convert(ctx, source, mobi, mobiFlags); err != nil {
		if errors.IsCode(err, errors.ErrProcessTimeout) {
			return err
		}
		return errors.Wrap(err, errors.ErrProcessFailure, "AZW3 to MOBI step failed")
	}
	if err := c.convert(ctx, mobi, dest, epubFlags); err != nil {
		if errors.IsCode(err, errors.ErrProcessTimeout) {
			return err
		}
		return errors.Wrap(err, errors.ErrProcessFailure, "MOBI to EPUB step failed")
	}
	return nil
}

func (c *Converter) convert(ctx context.Context, source, dest string, flags []string) error {
	args := append([]string{source, dest}, flags...)
	res := executor.Run(ctx, executor.Spec{
		Name:    "ebook-convert",
		Args:    args,
		Timeout: executor.ConvertTimeout,
	})

	if res.TimedOut {
		return errors.Newf(errors.ErrProcessTimeout,
			"conversion timeout (%.0f minutes)", executor.ConvertTimeout.Minutes())
	}
	if !res.Ok() {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "Conversion failed"
		}
		return errors.New(errors.ErrProcessFailure, msg)
	}

	// ebook-convert can exit zero without producing output.
	if _, err := os.Stat(dest); err != nil {
		return errors.New(errors.ErrProcessFailure, "Conversion produced no output file")
	}
	return nil
}
