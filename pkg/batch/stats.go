package batch

// Detail records one non-success item for the phase report.
type Detail struct {
	ID      string
	Label   string
	Message string
}

// Stats accumulates outcome counts and per-item details for one phase.
// Total is fixed at enumeration time and never recomputed; every other
// field is updated by exactly one Record call per item.
type Stats struct {
	Total    int
	Success  int
	Failed   int
	TimedOut int
	Dupes    int
	Skips    int

	// Ordered non-success details, in processing order.
	FailedItems    []Detail
	TimedOutItems  []Detail
	DuplicateItems []Detail
	SkippedItems   []Detail

	// AcceptedIDs collects the identifiers assigned to successful items,
	// in processing order. Items whose phase assigns no identifier
	// contribute nothing.
	AcceptedIDs []string
}

// NewStats creates a Stats with the batch size fixed up front.
func NewStats(total int) *Stats {
	return &Stats{Total: total}
}

// Record folds one item's terminal outcome into the statistics.
func (s *Stats) Record(item Item, outcome Outcome) {
	detail := Detail{ID: item.ID, Label: item.DisplayLabel(), Message: outcome.Message}

	switch outcome.Kind {
	case Success:
		s.Success++
		if outcome.AcceptedID != "" {
			s.AcceptedIDs = append(s.AcceptedIDs, outcome.AcceptedID)
		}
	case Failure:
		s.Failed++
		s.FailedItems = append(s.FailedItems, detail)
	case Timeout:
		s.TimedOut++
		s.TimedOutItems = append(s.TimedOutItems, detail)
	case Duplicate:
		s.Dupes++
		s.DuplicateItems = append(s.DuplicateItems, detail)
	case Skipped:
		s.Skips++
		s.SkippedItems = append(s.SkippedItems, detail)
	}
}

// Accounted reports whether every enumerated item has a recorded outcome.
func (s *Stats) Accounted() bool {
	return s.Total == s.Success+s.Failed+s.TimedOut+s.Dupes+s.Skips
}

// HasNonSuccess reports whether any outcome other than Success was
// recorded. The phase report file is written only when this is true.
func (s *Stats) HasNonSuccess() bool {
	return s.Failed > 0 || s.TimedOut > 0 || s.Dupes > 0 || s.Skips > 0
}

// FailedIDs returns the identifiers of failed and timed-out items, used
// by the orchestrator to exclude them from downstream phases.
func (s *Stats) FailedIDs() []string {
	ids := make([]string, 0, len(s.FailedItems)+len(s.TimedOutItems))
	for _, d := range s.FailedItems {
		ids = append(ids, d.ID)
	}
	for _, d := range s.TimedOutItems {
		ids = append(ids, d.ID)
	}
	return ids
}
