package cmd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/ingest/internal/model"
	edgarsvc "github.com/Taichi-iskw/ingest/internal/service/edgar"
	ytsvc "github.com/Taichi-iskw/ingest/internal/service/youtube"
	"github.com/Taichi-iskw/ingest/internal/session"
	edgarsource "github.com/Taichi-iskw/ingest/internal/source/edgar"
)

func sampleBatch() *edgarsvc.BatchStats {
	end := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	return &edgarsvc.BatchStats{
		TotalFilings:      4,
		Successful:        2,
		Failed:            1,
		Skipped:           1,
		TotalTransactions: 5,
		FailedAccessions: []edgarsvc.FailedAccession{
			{AccessionNumber: "0001127602-24-000001", Reason: "parse_error: malformed ownership document"},
		},
		Session: session.Stats{
			ID:                 "f3b1c2d4",
			SourceID:           "sec_edgar",
			End:                &end,
			ItemsFetched:       3,
			ItemsValidated:     2,
			ItemsFailed:        1,
			TotalRequests:      4,
			SuccessfulRequests: 3,
			ErrorsByType:       map[string]int{"parse_error": 1},
		},
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	t.Run("filing batch", func(t *testing.T) {
		output, err := formatter.Format(sampleBatch())
		require.NoError(t, err)

		assert.Contains(t, output, "Total: 4")
		assert.Contains(t, output, "Successful: 2")
		assert.Contains(t, output, "Skipped: 1")
		assert.Contains(t, output, "Transactions: 5")
		assert.Contains(t, output, "0001127602-24-000001: parse_error: malformed ownership document")
		assert.Contains(t, output, "Session f3b1c2d4 (sec_edgar): fetched 3, validated 2, failed 1")
		assert.Contains(t, output, "Requests: 4 total, 3 successful (75.0%)")
		assert.Contains(t, output, "parse_error: 1")
	})

	t.Run("discovery", func(t *testing.T) {
		output, err := formatter.Format(&ytsvc.DiscoverResult{
			NewVideos: map[string][]string{
				"UCb": {},
				"UCa": {"vid1", "vid2"},
			},
			Failed: 1,
		})
		require.NoError(t, err)

		assert.Contains(t, output, "UCa: 2\n  - vid1\n  - vid2\nUCb: 0\n")
		assert.Contains(t, output, "Total new: 2, failed to store: 1")
		assert.NotContains(t, output, "Session")
	})

	t.Run("channel init", func(t *testing.T) {
		output, err := formatter.Format(&ytsvc.InitResult{
			Channel:      &model.Channel{ID: "UCabc", Name: "Example"},
			VideosStored: 42,
		})
		require.NoError(t, err)

		assert.Contains(t, output, "Channel ID: UCabc")
		assert.Contains(t, output, "Videos stored: 42")
	})

	t.Run("collect report", func(t *testing.T) {
		output, err := formatter.Format(&CollectReport{
			Transcripts: &ytsvc.TranscriptResult{Completed: []string{"a"}, Failed: []string{"b"}},
			Filings:     sampleBatch(),
			Errors:      map[string]string{"youtube": "quota exceeded"},
		})
		require.NoError(t, err)

		assert.Contains(t, output, "Completed: 1")
		assert.Contains(t, output, "Failed: 1\n  - b\n")
		assert.Contains(t, output, "Form 4 filings")
		assert.Contains(t, output, "youtube failed: quota exceeded")
	})

	t.Run("filing search", func(t *testing.T) {
		output, err := formatter.Format(&edgarsvc.SearchResult{
			CIK: "0000320193",
			Filings: []edgarsource.FilingSummary{
				{AccessionNumber: "0001140361-25-000002", FilingDate: "2025-01-15", Form: "4", PrimaryDocument: "form4.xml"},
			},
		})
		require.NoError(t, err)

		assert.Contains(t, output, "Filings of CIK 0000320193")
		assert.Contains(t, output, "2025-01-15  4      0001140361-25-000002  form4.xml")
		assert.Contains(t, output, "Total: 1")

		empty, err := formatter.Format(&edgarsvc.SearchResult{CIK: "0000320193"})
		require.NoError(t, err)
		assert.Contains(t, empty, "No filings found")
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := formatter.Format("plain string")
		assert.Error(t, err)
	})
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{}

	output, err := formatter.Format(sampleBatch())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	assert.Equal(t, float64(4), decoded["total_filings"])
	assert.Equal(t, float64(5), decoded["total_transactions"])

	failed, ok := decoded["failed_accessions"].([]any)
	require.True(t, ok)
	require.Len(t, failed, 1)
	assert.Equal(t, "0001127602-24-000001", failed[0].(map[string]any)["accession"])
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    Formatter
		wantErr bool
	}{
		{name: "default", format: "", want: &TextFormatter{}},
		{name: "text", format: "text", want: &TextFormatter{}},
		{name: "json", format: "json", want: &JSONFormatter{}},
		{name: "unknown", format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := newFormatter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, formatter)
		})
	}
}
