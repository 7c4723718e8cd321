package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	edgarsvc "github.com/Taichi-iskw/ingest/internal/service/edgar"
	ytsvc "github.com/Taichi-iskw/ingest/internal/service/youtube"
	"github.com/Taichi-iskw/ingest/internal/session"
)

// Formatter defines interface for output formatting
type Formatter interface {
	Format(result any) (string, error)
}

// CollectReport is the combined result of a collect run
type CollectReport struct {
	Discovery   *ytsvc.DiscoverResult   `json:"discovery,omitempty"`
	Transcripts *ytsvc.TranscriptResult `json:"transcripts,omitempty"`
	Filings     *edgarsvc.BatchStats    `json:"filings,omitempty"`
	Errors      map[string]string       `json:"errors,omitempty"`
}

// newFormatter returns the formatter for the --output flag
func newFormatter(name string) (Formatter, error) {
	switch name {
	case "", "text":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (expected text or json)", name)
	}
}

// printResult writes result in the selected output format
func printResult(result any) error {
	formatter, err := newFormatter(outputFormat)
	if err != nil {
		return err
	}
	output, err := formatter.Format(result)
	if err != nil {
		return err
	}
	fmt.Print(output)
	return nil
}

// JSONFormatter formats output as JSON
type JSONFormatter struct{}

// Format formats result as indented JSON
func (f *JSONFormatter) Format(result any) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// TextFormatter formats output as plain text
type TextFormatter struct{}

// Format formats the known result types as plain text
func (f *TextFormatter) Format(result any) (string, error) {
	var output strings.Builder

	switch r := result.(type) {
	case *ytsvc.InitResult:
		writeInit(&output, r)
	case *ytsvc.DiscoverResult:
		writeDiscover(&output, r)
	case *ytsvc.TranscriptResult:
		writeTranscripts(&output, r)
	case *edgarsvc.BatchStats:
		writeBatch(&output, r)
	case *edgarsvc.SearchResult:
		writeSearch(&output, r)
	case *CollectReport:
		if r.Discovery != nil {
			writeDiscover(&output, r.Discovery)
		}
		if r.Transcripts != nil {
			writeTranscripts(&output, r.Transcripts)
		}
		if r.Filings != nil {
			writeBatch(&output, r.Filings)
		}
		for _, name := range sortedKeys(r.Errors) {
			output.WriteString(fmt.Sprintf("❌ %s failed: %s\n", name, r.Errors[name]))
		}
	default:
		return "", fmt.Errorf("unsupported result type %T", result)
	}

	return output.String(), nil
}

func writeInit(out *strings.Builder, r *ytsvc.InitResult) {
	out.WriteString("✅ Channel initialized\n")
	out.WriteString(fmt.Sprintf("Channel ID: %s\n", r.Channel.ID))
	out.WriteString(fmt.Sprintf("Name: %s\n", r.Channel.Name))
	out.WriteString(fmt.Sprintf("Videos stored: %d\n", r.VideosStored))
}

func writeDiscover(out *strings.Builder, r *ytsvc.DiscoverResult) {
	out.WriteString("New videos\n")
	out.WriteString("==========\n")
	total := 0
	for _, channelID := range sortedKeys(r.NewVideos) {
		ids := r.NewVideos[channelID]
		total += len(ids)
		out.WriteString(fmt.Sprintf("%s: %d\n", channelID, len(ids)))
		for _, id := range ids {
			out.WriteString(fmt.Sprintf("  - %s\n", id))
		}
	}
	out.WriteString(fmt.Sprintf("Total new: %d, failed to store: %d\n", total, r.Failed))
	writeSession(out, r.Stats)
}

func writeTranscripts(out *strings.Builder, r *ytsvc.TranscriptResult) {
	out.WriteString("Transcripts\n")
	out.WriteString("===========\n")
	out.WriteString(fmt.Sprintf("Completed: %d\n", len(r.Completed)))
	out.WriteString(fmt.Sprintf("Already on disk: %d\n", len(r.Existing)))
	out.WriteString(fmt.Sprintf("Failed: %d\n", len(r.Failed)))
	for _, id := range r.Failed {
		out.WriteString(fmt.Sprintf("  - %s\n", id))
	}
	writeSession(out, r.Stats)
}

func writeBatch(out *strings.Builder, r *edgarsvc.BatchStats) {
	out.WriteString("Form 4 filings\n")
	out.WriteString("==============\n")
	out.WriteString(fmt.Sprintf("Total: %d\n", r.TotalFilings))
	out.WriteString(fmt.Sprintf("Successful: %d\n", r.Successful))
	out.WriteString(fmt.Sprintf("Skipped: %d\n", r.Skipped))
	out.WriteString(fmt.Sprintf("Failed: %d\n", r.Failed))
	out.WriteString(fmt.Sprintf("Transactions: %d\n", r.TotalTransactions))
	for _, fa := range r.FailedAccessions {
		out.WriteString(fmt.Sprintf("  - %s: %s\n", fa.AccessionNumber, fa.Reason))
	}
	writeSession(out, r.Session)
}

func writeSearch(out *strings.Builder, r *edgarsvc.SearchResult) {
	out.WriteString(fmt.Sprintf("Filings of CIK %s\n", r.CIK))
	if len(r.Filings) == 0 {
		out.WriteString("No filings found\n")
		return
	}
	for _, f := range r.Filings {
		out.WriteString(fmt.Sprintf("%s  %-6s %s  %s\n", f.FilingDate, f.Form, f.AccessionNumber, f.PrimaryDocument))
	}
	out.WriteString(fmt.Sprintf("Total: %d\n", len(r.Filings)))
}

func writeSession(out *strings.Builder, s session.Stats) {
	if s.ID == "" {
		out.WriteString("\n")
		return
	}
	out.WriteString(fmt.Sprintf("Session %s (%s): fetched %d, validated %d, failed %d\n",
		s.ID, s.SourceID, s.ItemsFetched, s.ItemsValidated, s.ItemsFailed))
	out.WriteString(fmt.Sprintf("Requests: %d total, %d successful (%.1f%%)\n",
		s.TotalRequests, s.SuccessfulRequests, s.SuccessRate()))
	for _, kind := range sortedKeys(s.ErrorsByType) {
		out.WriteString(fmt.Sprintf("  %s: %d\n", kind, s.ErrorsByType[kind]))
	}
	out.WriteString("\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
