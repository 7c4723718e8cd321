package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Error categories recorded by sources and the collect runner
const (
	KindProcessingError     = "processing_error"
	KindValidationFailure   = "validation_failure"
	KindParseError          = "parse_error"
	KindJSONParseError      = "json_parse_error"
	KindPersistenceError    = "persistence_error"
	KindDocumentUnavailable = "document_unavailable"
)

// ErrorRecord is one categorized failure observed during a session
type ErrorRecord struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Stats is the accounting of one collect session
type Stats struct {
	ID                 string         `json:"session_id"`
	SourceID           string         `json:"source_id"`
	Start              time.Time      `json:"start_time"`
	End                *time.Time     `json:"end_time,omitempty"`
	ItemsFetched       int            `json:"items_fetched"`
	ItemsValidated     int            `json:"items_validated"`
	ItemsFailed        int            `json:"items_failed"`
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	ErrorsByType       map[string]int `json:"errors_by_type"`
	Errors             []ErrorRecord  `json:"errors"`
}

// SuccessRate returns the percentage of successful requests, 0 when none were sent
func (s Stats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}

// Duration returns the elapsed time of a closed session, or 0 while it is open
func (s Stats) Duration() time.Duration {
	if s.End == nil {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Tracker owns the stats of the current session of one source.
// A tracker belongs to a single worker and is not safe for concurrent use.
type Tracker struct {
	sourceID string
	logger   *zap.Logger
	now      func() time.Time
	stats    Stats
}

// NewTracker creates a tracker with an open session
func NewTracker(sourceID string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		sourceID: sourceID,
		logger:   logger,
		now:      time.Now,
	}
	t.reset()
	return t
}

// SetClock replaces the time source
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
	t.stats.Start = now()
}

func (t *Tracker) SourceID() string {
	return t.sourceID
}

func (t *Tracker) Logger() *zap.Logger {
	return t.logger
}

func (t *Tracker) reset() {
	t.stats = Stats{
		ID:           uuid.NewString(),
		SourceID:     t.sourceID,
		Start:        t.now(),
		ErrorsByType: make(map[string]int),
	}
}

// Start opens a fresh session, discarding the previous counters
func (t *Tracker) Start() {
	t.reset()
	t.logger.Info("Starting collection session", zap.String("session_id", t.stats.ID))
}

// End closes the session and logs its summary
func (t *Tracker) End() Stats {
	end := t.now()
	t.stats.End = &end

	t.logger.Info("Completed collection session",
		zap.String("session_id", t.stats.ID),
		zap.Duration("duration", t.stats.Duration()),
		zap.Int("items_fetched", t.stats.ItemsFetched),
		zap.Int("items_validated", t.stats.ItemsValidated),
		zap.Int("items_failed", t.stats.ItemsFailed),
		zap.Int("total_requests", t.stats.TotalRequests),
		zap.String("success_rate", formatRate(t.stats.SuccessRate())),
		zap.Any("errors_by_type", t.stats.ErrorsByType),
	)
	return t.Stats()
}

// TrackError records a categorized failure with optional context
func (t *Tracker) TrackError(kind, message string, context map[string]string) {
	t.stats.ErrorsByType[kind]++
	t.stats.Errors = append(t.stats.Errors, ErrorRecord{
		Type:      kind,
		Message:   message,
		Context:   context,
		Timestamp: t.now(),
	})

	fields := []zap.Field{zap.String("error_type", kind), zap.String("error", message)}
	for k, v := range context {
		fields = append(fields, zap.String(k, v))
	}
	t.logger.Error("Collection error", fields...)
}

// TrackRequest counts one logical HTTP request. A failed request is also
// recorded as an error of kind failureKind.
func (t *Tracker) TrackRequest(ok bool, failureKind, message string, context map[string]string) {
	t.stats.TotalRequests++
	if ok {
		t.stats.SuccessfulRequests++
		return
	}
	t.stats.FailedRequests++
	t.TrackError(failureKind, message, context)
}

// AddFetched adds n raw items to the fetched count
func (t *Tracker) AddFetched(n int) {
	t.stats.ItemsFetched += n
}

// AddValidated counts one item that passed validation
func (t *Tracker) AddValidated() {
	t.stats.ItemsValidated++
}

// AddFailed counts one item that failed
func (t *Tracker) AddFailed() {
	t.stats.ItemsFailed++
}

// Stats returns a copy of the current counters
func (t *Tracker) Stats() Stats {
	s := t.stats
	s.ErrorsByType = make(map[string]int, len(t.stats.ErrorsByType))
	for k, v := range t.stats.ErrorsByType {
		s.ErrorsByType[k] = v
	}
	s.Errors = append([]ErrorRecord(nil), t.stats.Errors...)
	if t.stats.End != nil {
		end := *t.stats.End
		s.End = &end
	}
	return s
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}
