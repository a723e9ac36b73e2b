// Package batch implements the per-item pipeline shared by the key
// extraction, library import, and format conversion phases: enumerate a
// set of work items, process them strictly in order through one external
// invocation each, classify every outcome, and accumulate statistics for
// the console summary and the failure report.
package batch

import (
	"context"
	"fmt"
	"time"
)

// Item is one unit of batch work. Items live for the duration of a single
// phase and are never persisted.
type Item struct {
	// ID is the stable identifier, derived from a folder or file name
	// (typically the ASIN or the calibre book id).
	ID string

	// Label is a human-readable title, resolved lazily and optionally.
	// Falls back to ID when no title is available.
	Label string

	// Path is the filesystem location of the item's content.
	Path string

	// Format tags the source ebook format where relevant (e.g. "azw3",
	// "kfx-zip").
	Format string
}

// DisplayLabel returns the label, or the ID when no label was resolved.
func (it Item) DisplayLabel() string {
	if it.Label != "" {
		return it.Label
	}
	return it.ID
}

// Kind classifies the terminal result of processing one Item.
type Kind int

const (
	// Success: the external process completed and produced the expected
	// output.
	Success Kind = iota

	// Failure: nonzero exit, missing expected output, or an error
	// launching the process.
	Failure

	// Timeout: the process exceeded its fixed bound and was killed.
	Timeout

	// Duplicate: the external tool reported a pre-existing record.
	Duplicate

	// Skipped: the item was deliberately not processed (e.g. a KFX-ZIP
	// file under skip mode).
	Skipped
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILED"
	case Timeout:
		return "TIMEOUT"
	case Duplicate:
		return "DUPLICATE"
	case Skipped:
		return "SKIPPED"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the tagged result of processing one Item. Exactly one
// Outcome is recorded per enumerated Item per phase.
type Outcome struct {
	Kind Kind

	// Message carries the failure detail, the skip reason, or the
	// conflicting title for duplicates. Empty for successes.
	Message string

	// AcceptedID is the identifier assigned by the external tool on
	// success (e.g. the calibre book id). Empty when the phase assigns
	// no identifier.
	AcceptedID string

	// Elapsed is how long the item took to process.
	Elapsed time.Duration
}

// Succeeded reports whether the outcome is a Success.
func (o Outcome) Succeeded() bool { return o.Kind == Success }

// ProcessFunc processes one item and returns its terminal outcome.
// Implementations must never return an error: every per-item problem is
// folded into a Failure outcome so a single bad item cannot abort the
// batch.
type ProcessFunc func(ctx context.Context, item Item) Outcome

// AfterSuccessFunc runs after each Success, before the next item starts,
// so accepted results are durably merged even if the run aborts later.
// A merge error downgrades nothing; it is reported as a warning by the
// runner's progress callbacks.
type AfterSuccessFunc func(item Item, outcome Outcome) error

// Progress receives per-item notifications for console rendering.
// Any method may be nil-safe implemented by NopProgress.
type Progress interface {
	// ItemStarted is called before processing item (1-based index).
	ItemStarted(index, total int, item Item)

	// ItemFinished is called with the item's terminal outcome.
	ItemFinished(index, total int, item Item, outcome Outcome)

	// MergeWarning is called when the after-success hook fails.
	MergeWarning(item Item, err error)
}

// NopProgress discards all notifications.
type NopProgress struct{}

func (NopProgress) ItemStarted(int, int, Item)           {}
func (NopProgress) ItemFinished(int, int, Item, Outcome) {}
func (NopProgress) MergeWarning(Item, error)             {}

// Runner drives one phase's batch sequentially in enumeration order.
type Runner struct {
	Process      ProcessFunc
	AfterSuccess AfterSuccessFunc // optional
	Progress     Progress         // optional
}

// Run processes every item exactly once and records exactly one outcome
// per item into a fresh Stats. Total is fixed from len(items) before the
// first item is processed. Context cancellation stops the batch between
// items; unprocessed items are recorded as Skipped so no item is left
// unaccounted.
func (r *Runner) Run(ctx context.Context, items []Item) *Stats {
	stats := NewStats(len(items))
	progress := r.Progress
	if progress == nil {
		progress = NopProgress{}
	}

	for i, item := range items {
		if ctx.Err() != nil {
			stats.Record(item, Outcome{Kind: Skipped, Message: "run interrupted"})
			continue
		}

		progress.ItemStarted(i+1, len(items), item)

		start := time.Now()
		outcome := r.Process(ctx, item)
		if outcome.Elapsed == 0 {
			outcome.Elapsed = time.Since(start)
		}

		stats.Record(item, outcome)
		progress.ItemFinished(i+1, len(items), item, outcome)

		if outcome.Succeeded() && r.AfterSuccess != nil {
			if err := r.AfterSuccess(item, outcome); err != nil {
				progress.MergeWarning(item, err)
			}
		}
	}

	return stats
}
