package batch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfxtools/keyfinder/pkg/batch"
)

func extractionMeta() batch.ReportMeta {
	return batch.ReportMeta{
		Title:      "KINDLE KEY EXTRACTION LOG",
		Root:       `C:\Users\x\Documents\My Kindle Content`,
		RootLabel:  "Content",
		Timeout:    60 * time.Second,
		FilePrefix: "extraction",
		Subdir:     "extraction_logs",
	}
}

func TestWriteReportSkipsPureSuccess(t *testing.T) {
	logs := t.TempDir()
	stats := batch.NewStats(3)
	for i := 0; i < 3; i++ {
		stats.Record(batch.Item{ID: "x"}, batch.Outcome{Kind: batch.Success})
	}

	path, err := batch.WriteReport(logs, extractionMeta(), stats)
	require.NoError(t, err)
	assert.Equal(t, "", path)

	// Not even the subdirectory is created for pure successes.
	_, statErr := os.Stat(filepath.Join(logs, "extraction_logs"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteReportOnFailure(t *testing.T) {
	logs := t.TempDir()
	stats := batch.NewStats(3)
	stats.Record(batch.Item{ID: "B001"}, batch.Outcome{Kind: batch.Success})
	stats.Record(batch.Item{ID: "B002"}, batch.Outcome{Kind: batch.Success})
	stats.Record(batch.Item{ID: "B003"}, batch.Outcome{Kind: batch.Timeout})

	path, err := batch.WriteReport(logs, extractionMeta(), stats)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "extraction_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Equal(t, 1, strings.Count(text, "[TIMEOUT]"), "exactly one timeout entry")
	assert.NotContains(t, text, "[FAILED]")
	assert.NotContains(t, text, "[SKIPPED]")
	assert.Contains(t, text, "Timeout per item: 60 seconds")
	assert.Contains(t, text, "Total:     3")
	assert.Contains(t, text, "Success:   2")
}

func TestRenderReportSectionPresence(t *testing.T) {
	tests := []struct {
		name    string
		record  func(*batch.Stats)
		want    []string
		notWant []string
	}{
		{
			name: "all_four_buckets",
			record: func(s *batch.Stats) {
				s.Record(batch.Item{ID: "a"}, batch.Outcome{Kind: batch.Failure, Message: "boom"})
				s.Record(batch.Item{ID: "b"}, batch.Outcome{Kind: batch.Timeout})
				s.Record(batch.Item{ID: "c"}, batch.Outcome{Kind: batch.Duplicate, Message: "Title"})
				s.Record(batch.Item{ID: "d"}, batch.Outcome{Kind: batch.Skipped, Message: "kfx-zip"})
			},
			want:    []string{"FAILED (1)", "TIMEOUT (1)", "DUPLICATE (1)", "SKIPPED (1)"},
			notWant: []string{"SUCCESSFUL"},
		},
		{
			name: "only_failures",
			record: func(s *batch.Stats) {
				s.Record(batch.Item{ID: "a"}, batch.Outcome{Kind: batch.Failure, Message: "boom"})
				s.Record(batch.Item{ID: "b"}, batch.Outcome{Kind: batch.Success, AcceptedID: "7"})
			},
			want:    []string{"FAILED (1)", "SUCCESSFUL (1)", "Accepted ids: 7"},
			notWant: []string{"TIMEOUT (", "DUPLICATE (", "SKIPPED ("},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := batch.NewStats(4)
			tt.record(stats)

			var sb strings.Builder
			require.NoError(t, batch.RenderReport(&sb, extractionMeta(), stats))
			text := sb.String()

			for _, want := range tt.want {
				assert.Contains(t, text, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, text, notWant)
			}
		})
	}
}

func TestStatsFailedIDs(t *testing.T) {
	stats := batch.NewStats(4)
	stats.Record(batch.Item{ID: "ok"}, batch.Outcome{Kind: batch.Success})
	stats.Record(batch.Item{ID: "f1"}, batch.Outcome{Kind: batch.Failure})
	stats.Record(batch.Item{ID: "t1"}, batch.Outcome{Kind: batch.Timeout})
	stats.Record(batch.Item{ID: "d1"}, batch.Outcome{Kind: batch.Duplicate})

	// Duplicates stay importable; only failures and timeouts are excluded
	// downstream.
	assert.Equal(t, []string{"f1", "t1"}, stats.FailedIDs())
}
