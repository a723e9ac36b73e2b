// Package calibre wraps the calibre command line tools (calibredb,
// ebook-convert, fetch-ebook-metadata) and read-only access to a
// library's metadata.db.
package calibre

import (
	"context"
	"fmt"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/executor"
	"github.com/kfxtools/keyfinder/pkg/logging"
)

const (
	addedIDsPrefix  = "Added book ids:"
	duplicateMarker = "already exist in the database"
)

// DB invokes calibredb against a fixed library.
type DB struct {
	LibraryPath string
}

// ImportResult reports one calibredb add invocation.
type ImportResult struct {
	// BookID is the id calibre assigned on success.
	BookID string

	// Duplicate is set when calibre refused the book because it already
	// exists; Title then carries the title calibre reported, when it
	// could be parsed.
	Duplicate bool
	Title     string
}

// Add imports one book directory. allowDuplicates maps to calibredb's
// -d flag. Timeouts and process failures come back as coded errors.
func (db *DB) Add(ctx context.Context, bookPath string, allowDuplicates bool) (ImportResult, error) {
	args := []string{"add"}
	if allowDuplicates {
		args = append(args, "-d")
	}
	args = append(args, "-1", bookPath, "--library-path="+db.LibraryPath)

	res := executor.Run(ctx, executor.Spec{
		Name:    "calibredb",
		Args:    args,
		Timeout: executor.DefaultTimeout,
	})
	logger := logging.GetLogger("calibre")
	logger.Debug().
		Str("book", bookPath).Int("exit", res.ExitCode).Msg("calibredb add")

	if res.TimedOut {
		return ImportResult{}, errors.Newf(errors.ErrProcessTimeout,
			"timeout after %.0f seconds", executor.DefaultTimeout.Seconds())
	}

	if res.Ok() {
		if id := ParseAddedID(res.Stdout); id != "" {
			return ImportResult{BookID: id}, nil
		}
	}

	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = "Unknown error"
	}
	if strings.Contains(msg, duplicateMarker) {
		return ImportResult{Duplicate: true, Title: ParseDuplicateTitle(msg)}, nil
	}
	return ImportResult{}, errors.New(errors.ErrProcessFailure, msg)
}

// AddFormat attaches a file as an additional format on an existing
// book record.
func (db *DB) AddFormat(ctx context.Context, bookID, path string) error {
	res := executor.Run(ctx, executor.Spec{
		Name:    "calibredb",
		Args:    []string{"add_format", bookID, path, "--library-path=" + db.LibraryPath},
		Timeout: executor.DefaultTimeout,
	})
	return db.simpleResult(res, "failed to add format")
}

// Remove permanently deletes book records, bypassing calibre's trash.
func (db *DB) Remove(ctx context.Context, bookIDs []string) error {
	res := executor.Run(ctx, executor.Spec{
		Name:    "calibredb",
		Args:    []string{"remove", strings.Join(bookIDs, ","), "--permanent", "--library-path=" + db.LibraryPath},
		Timeout: executor.DefaultTimeout,
	})
	return db.simpleResult(res, "failed to remove books")
}

// RemoveFormat removes one format (e.g. "KFX-ZIP", "AZW3") from a book
// record.
func (db *DB) RemoveFormat(ctx context.Context, bookID, format string) error {
	res := executor.Run(ctx, executor.Spec{
		Name:    "calibredb",
		Args:    []string{"remove_format", bookID, strings.ToUpper(format), "--library-path=" + db.LibraryPath},
		Timeout: executor.DefaultTimeout,
	})
	return db.simpleResult(res, "failed to remove format")
}

func (db *DB) simpleResult(res executor.Result, fallback string) error {
	if res.TimedOut {
		return errors.Newf(errors.ErrProcessTimeout,
			"timeout after %.0f seconds", executor.DefaultTimeout.Seconds())
	}
	if res.Ok() {
		return nil
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fallback
	}
	return errors.New(errors.ErrProcessFailure, msg)
}

// ParseAddedID extracts the first book id from calibredb add output,
// which contains a line like "Added book ids: 123".
func ParseAddedID(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		i := strings.Index(line, addedIDsPrefix)
		if i < 0 {
			continue
		}
		ids := strings.TrimSpace(line[i+len(addedIDsPrefix):])
		if j := strings.Index(ids, ","); j >= 0 {
			ids = ids[:j]
		}
		return strings.TrimSpace(ids)
	}
	return ""
}

// ParseDuplicateTitle extracts the refused book's title from calibredb's
// duplicate message. The title sits on the first non-empty line after
// the "already exist in the database" line, skipping parenthesized
// notes. Returns "" when no title can be found.
func ParseDuplicateTitle(stderr string) string {
	lines := strings.Split(stderr, "\n")
	for i, line := range lines {
		if !strings.Contains(line, duplicateMarker) {
			continue
		}
		for _, candidate := range lines[i+1:] {
			candidate = strings.TrimSpace(candidate)
			if candidate != "" && !strings.HasPrefix(candidate, "(") {
				return candidate
			}
		}
		return ""
	}
	return ""
}

// String identifies the library for log output.
func (db *DB) String() string {
	return fmt.Sprintf("calibre library %s", db.LibraryPath)
}
