package calibre

import (
	"context"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/executor"
)

// FetchTitle resolves a book title for display from its ASIN using
// fetch-ebook-metadata. On any failure the ASIN itself is returned, so
// the caller always has a usable label.
func FetchTitle(ctx context.Context, asin string) string {
	res := executor.Run(ctx, executor.Spec{
		Name:    "fetch-ebook-metadata",
		Args:    []string{"-I", "asin:" + asin},
		Timeout: executor.MetadataTimeout,
	})
	if !res.Ok() {
		return asin
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Title") {
			continue
		}
		// "Title               : The Example Title"
		if _, title, ok := strings.Cut(line, ":"); ok {
			if title = strings.TrimSpace(title); title != "" {
				return title
			}
		}
	}
	return asin
}

// processNames are the calibre executables whose presence means the GUI
// or a tool still holds the library open.
var processNames = []string{
	"calibre.exe",
	"calibre-parallel.exe",
	"calibredb.exe",
	"ebook-convert.exe",
}

// IsRunning reports whether any calibre process is active, via the
// Windows tasklist command. Detection failures report true: writing to
// a library a running calibre holds open corrupts it, so uncertainty
// reads as running.
func IsRunning(ctx context.Context) bool {
	res := executor.Run(ctx, executor.Spec{
		Name:    "tasklist",
		Args:    []string{"/FI", "IMAGENAME eq calibre*"},
		Timeout: executor.ProbeTimeout,
	})
	if res.Err != nil || res.TimedOut {
		return true
	}

	out := strings.ToLower(res.Stdout)
	for _, name := range processNames {
		if strings.Contains(out, name) {
			return true
		}
	}
	return false
}
