package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

const reportRule = 70

// ReportMeta describes the phase for the report header.
type ReportMeta struct {
	// Title is the report heading, e.g. "KINDLE KEY EXTRACTION LOG".
	Title string

	// Root names the phase's input root (content directory or library
	// path). Optional.
	Root string

	// RootLabel captions Root in the header, e.g. "Library". Defaults
	// to "Root".
	RootLabel string

	// Timeout is the per-item bound, rendered in the header.
	Timeout time.Duration

	// FilePrefix and Subdir control the on-disk location:
	// <logsDir>/<Subdir>/<FilePrefix>_<timestamp>.log.
	FilePrefix string
	Subdir     string
}

// RenderReport writes the structured plain-text report for finalized
// statistics. Sections with empty buckets are omitted entirely.
func RenderReport(w io.Writer, meta ReportMeta, stats *Stats) error {
	heavy := strings.Repeat("=", reportRule)
	light := strings.Repeat("-", reportRule)

	fmt.Fprintln(w, heavy)
	fmt.Fprintln(w, meta.Title)
	fmt.Fprintln(w, heavy)
	fmt.Fprintf(w, "Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	if meta.Root != "" {
		label := meta.RootLabel
		if label == "" {
			label = "Root"
		}
		fmt.Fprintf(w, "%s: %s\n", label, meta.Root)
	}
	fmt.Fprintf(w, "Total Items: %d\n", stats.Total)
	if meta.Timeout > 0 {
		fmt.Fprintf(w, "Timeout per item: %d seconds\n", int(meta.Timeout.Seconds()))
	}
	fmt.Fprintln(w)

	section := func(name string, items []Detail, render func(Detail)) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintln(w, light)
		fmt.Fprintf(w, "%s (%d)\n", name, len(items))
		fmt.Fprintln(w, light)
		for _, d := range items {
			render(d)
		}
		fmt.Fprintln(w)
	}

	section("FAILED", stats.FailedItems, func(d Detail) {
		fmt.Fprintf(w, "\n[FAILED] %s - %s\n", d.ID, d.Label)
		fmt.Fprintf(w, "  Error: %s\n", orUnknown(d.Message))
	})
	section("TIMEOUT", stats.TimedOutItems, func(d Detail) {
		fmt.Fprintf(w, "\n[TIMEOUT] %s - %s\n", d.ID, d.Label)
		fmt.Fprintf(w, "  Duration: Exceeded %d seconds\n", int(meta.Timeout.Seconds()))
	})
	section("DUPLICATE", stats.DuplicateItems, func(d Detail) {
		fmt.Fprintf(w, "\n[DUPLICATE] %s - %s\n", d.ID, d.Label)
		fmt.Fprintf(w, "  Conflict: %s\n", orUnknown(d.Message))
	})
	section("SKIPPED", stats.SkippedItems, func(d Detail) {
		fmt.Fprintf(w, "\n[SKIPPED] %s - %s\n", d.ID, d.Label)
		fmt.Fprintf(w, "  Reason: %s\n", orUnknown(d.Message))
	})

	// Success gets a count-only summary, never per-item detail.
	if stats.Success > 0 {
		fmt.Fprintln(w, light)
		fmt.Fprintf(w, "SUCCESSFUL (%d)\n", stats.Success)
		fmt.Fprintln(w, light)
		if len(stats.AcceptedIDs) > 0 {
			fmt.Fprintf(w, "Accepted ids: %s\n", strings.Join(stats.AcceptedIDs, ", "))
		} else {
			fmt.Fprintf(w, "%d item(s) completed successfully\n", stats.Success)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, heavy)
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintln(w, heavy)
	fmt.Fprintf(w, "Total:     %d\n", stats.Total)
	fmt.Fprintf(w, "Success:   %d\n", stats.Success)
	fmt.Fprintf(w, "Failed:    %d\n", stats.Failed)
	fmt.Fprintf(w, "Timeout:   %d\n", stats.TimedOut)
	if stats.Dupes > 0 {
		fmt.Fprintf(w, "Duplicate: %d\n", stats.Dupes)
	}
	if stats.Skips > 0 {
		fmt.Fprintf(w, "Skipped:   %d\n", stats.Skips)
	}
	fmt.Fprintln(w, heavy)

	return nil
}

// WriteReport renders the report to a timestamped file under
// logsRoot/meta.Subdir. It returns ("", nil) without touching the
// filesystem when the batch had no non-success outcome.
func WriteReport(logsRoot string, meta ReportMeta, stats *Stats) (string, error) {
	if !stats.HasNonSuccess() {
		return "", nil
	}

	dir := filepath.Join(logsRoot, meta.Subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "failed to create log directory %s", dir)
	}

	name := fmt.Sprintf("%s_%s.log", meta.FilePrefix, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileCreate, "failed to create report %s", path)
	}
	defer f.Close()

	if err := RenderReport(f, meta, stats); err != nil {
		return "", errors.Wrap(err, errors.ErrFileWrite, "failed to render report")
	}
	return path, nil
}

func orUnknown(msg string) string {
	if msg == "" {
		return "Unknown error"
	}
	return msg
}
