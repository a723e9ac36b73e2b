// Package keys drives the external key extractor and merges its output
// into the accumulated key files (kindlekey.txt and kindlekey.k4i).
package keys

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/paths"
)

// Extraction holds the account identifiers the extractor reports on
// stdout alongside the key files it writes.
type Extraction struct {
	DSN    string
	Tokens string
}

// Extractor runs the key extractor against one book folder at a time.
//
// The extractor expects to run from inside the Kindle application
// directory and to be pointed at a content directory. To constrain each
// run to a single book, the book folder is staged alone into a scratch
// directory and the extractor is pointed there.
type Extractor struct {
	binary    string // source location of the extractor executable
	kindleDir string
	scratch   string
}

func NewExtractor(binary, kindleDir, scratch string) *Extractor {
	return &Extractor{binary: binary, kindleDir: kindleDir, scratch: scratch}
}

// Install copies the extractor executable into the Kindle application
// directory if it is not already there. The extractor reads process
// state it can only see from that location.
func (e *Extractor) Install() (string, error) {
	target := filepath.Join(e.kindleDir, paths.ExtractorExeName)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	data, err := os.ReadFile(e.binary)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrFileAccess, "failed to read extractor executable")
	}
	if err := os.WriteFile(target, data, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrFileWrite, "failed to copy extractor into Kindle directory")
	}
	return target, nil
}

// ExtractBook stages bookDir into the scratch directory, runs the
// extractor against it, and parses the reported identifiers. The key
// files are written by the extractor to outKey and outK4I. The scratch
// directory is removed before returning, on every path.
//
// Errors carry a code the caller classifies: ErrProcessTimeout,
// ErrProcessFailure, or ErrMalformedOutput when the extractor exits
// zero without producing both key files.
func (e *Extractor) ExtractBook(ctx context.Context, bookDir, outKey, outK4I string) (Extraction, error) {
	log := logging.GetLogger("keys")

	exe, err := e.Install()
	if err != nil {
		return Extraction{}, err
	}

	if err := e.stage(bookDir); err != nil {
		return Extraction{}, err
	}
	defer func() {
		if err := os.RemoveAll(e.scratch); err != nil {
			log.Warn().Err(err).Str("dir", e.scratch).Msg("could not remove scratch directory")
		}
	}()

	res := executor.Run(ctx, executor.Spec{
		Name:    exe,
		Args:    []string{e.scratch, outKey, outK4I},
		Dir:     e.kindleDir,
		Timeout: executor.DefaultTimeout,
	})

	if res.TimedOut {
		return Extraction{}, errors.Newf(errors.ErrProcessTimeout,
			"timeout after %.0f seconds", executor.DefaultTimeout.Seconds())
	}
	if !res.Ok() {
		return Extraction{}, errors.New(errors.ErrProcessFailure, executor.FailureMessage(res))
	}

	if !fileExists(outKey) || !fileExists(outK4I) {
		return Extraction{}, errors.New(errors.ErrMalformedOutput, "key files not generated")
	}

	return ParseOutput(res.Stdout), nil
}

// ParseOutput extracts the DSN and first token from the extractor's
// stdout. Lines look like "DSN <value>" and "Tokens <a>,<b>,..."; only
// the first comma-separated token is kept.
func ParseOutput(stdout string) Extraction {
	var ext Extraction
	for _, line := range strings.Split(stdout, "\n") {
		switch {
		case strings.HasPrefix(line, "DSN "):
			ext.DSN = strings.TrimSpace(strings.TrimPrefix(line, "DSN "))
		case strings.HasPrefix(line, "Tokens "):
			tokens := strings.TrimSpace(strings.TrimPrefix(line, "Tokens "))
			if i := strings.Index(tokens, ","); i >= 0 {
				tokens = tokens[:i]
			}
			ext.Tokens = strings.TrimSpace(tokens)
		}
	}
	return ext
}

// stage recreates the scratch directory holding a copy of just this
// book's folder, giving the extractor the content layout it expects
// while limiting it to one book.
func (e *Extractor) stage(bookDir string) error {
	if err := os.RemoveAll(e.scratch); err != nil {
		return errors.Wrap(err, errors.ErrFileAccess, "failed to clear scratch directory")
	}
	dest := filepath.Join(e.scratch, filepath.Base(bookDir))
	if err := copyTree(bookDir, dest); err != nil {
		_ = os.RemoveAll(e.scratch)
		return errors.Wrap(err, errors.ErrFileAccess, "failed to stage book folder")
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
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
