package model

import (
	"strings"
	"time"
)

// Channel represents YouTube channel information
type Channel struct {
	ID             string    `json:"channel_id" db:"channel_id"`
	Name           string    `json:"channel_name" db:"channel_name"`
	Description    string    `json:"channel_description" db:"channel_description"`
	Initialized    bool      `json:"initialized" db:"initialized"` // full video backlog ingested
	UpdateDatetime time.Time `json:"update_datetime" db:"update_datetime"`
}

// Video represents YouTube video information
type Video struct {
	ID              string     `json:"video_id" db:"video_id"`
	ChannelID       string     `json:"channel_id" db:"channel_id"`
	Title           string     `json:"video_name" db:"video_name"`
	Duration        int        `json:"video_duration" db:"video_duration"` // duration in seconds
	PublicationDate *time.Time `json:"publication_date,omitempty" db:"publication_date"`
	UpdateDatetime  time.Time  `json:"update_datetime" db:"update_datetime"`
}

// ProcessingStep names a post-acquisition step tracked per video
type ProcessingStep string

const (
	StepExtract   ProcessingStep = "extract"
	StepSummarize ProcessingStep = "summarize"
)

// Processing status values
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Valid reports whether s is a known processing step
func (s ProcessingStep) Valid() bool {
	return s == StepExtract || s == StepSummarize
}

// VideoProcessing holds per-step status for a video
type VideoProcessing struct {
	VideoID           string     `json:"video_id" db:"video_id"`
	ExtractStatus     *string    `json:"extract_status,omitempty" db:"extract_status"`
	ExtractDatetime   *time.Time `json:"extract_datetime,omitempty" db:"extract_datetime"`
	ExtractFile       *string    `json:"extract_file,omitempty" db:"extract_file"`
	SummarizeStatus   *string    `json:"summarize_status,omitempty" db:"summarize_status"`
	SummarizeDatetime *time.Time `json:"summarize_datetime,omitempty" db:"summarize_datetime"`
	SummarizeFile     *string    `json:"summarize_file,omitempty" db:"summarize_file"`
}

// Transcript is the normalized text of one video's caption track
type Transcript struct {
	VideoID  string              `json:"video_id"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptSegment represents one caption line
type TranscriptSegment struct {
	Start    float64 `json:"start"`    // seconds
	Duration float64 `json:"duration"` // seconds
	Text     string  `json:"text"`
}

// Text joins the caption lines, one per line
func (t *Transcript) Text() string {
	lines := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		lines = append(lines, s.Text)
	}
	return strings.Join(lines, "\n")
}
