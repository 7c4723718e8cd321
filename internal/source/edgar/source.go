package edgar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"github.com/Taichi-iskw/ingest/internal/logging"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/pagination"
	"github.com/Taichi-iskw/ingest/internal/session"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	// SourceID identifies EDGAR Form 4 collection in logs, stats and metrics
	SourceID = "sec_edgar"

	DefaultBaseURL  = "https://www.sec.gov"
	DefaultDataURL  = "https://data.sec.gov"
	DefaultDaysBack = 1

	currentFeedPath = "cgi-bin/browse-edgar"
	tickersPath     = "files/company_tickers.json"
)

// ExistsFunc reports whether a filing is already stored
type ExistsFunc func(ctx context.Context, accessionNumber string) (bool, error)

// Options configures a FilingSource
type Options struct {
	HTTP httpclient.Options
	// DataURL hosts the JSON APIs, DefaultDataURL when empty
	DataURL  string
	PageSize int
	Exists   ExistsFunc
	Logger   *zap.Logger
}

// FetchParams bounds one scan of the current filings feed
type FetchParams struct {
	DaysBack int
	Now      time.Time
}

// FeedEntry is one row of the current filings Atom feed
type FeedEntry struct {
	Title           string
	CIK             string
	Link            string
	AccessionNumber string
	Form            string
	Updated         time.Time
}

// RawFiling is a feed entry with its primary ownership document.
// XML is nil when the document could not be retrieved.
type RawFiling struct {
	Entry FeedEntry
	XML   []byte
}

func (r RawFiling) String() string {
	return fmt.Sprintf("%s %s (%d bytes)", r.Entry.AccessionNumber, r.Entry.Title, len(r.XML))
}

// FilingSource collects Form 4 insider transaction filings from SEC EDGAR
type FilingSource struct {
	client   *httpclient.Client
	tracker  *session.Tracker
	logger   *zap.Logger
	parser   *gofeed.Parser
	dataURL  string
	pageSize int
	exists   ExistsFunc
	now      func() time.Time
	skipped  int
}

// NewFilingSource creates the source and its HTTP client.
// EDGAR rejects anonymous traffic, so the user agent must carry a contact address.
func NewFilingSource(opts Options) (*FilingSource, error) {
	logger := logging.ForSource(opts.Logger, SourceID)
	tracker := session.NewTracker(SourceID, logger)

	httpOpts := opts.HTTP
	httpOpts.SourceID = SourceID
	httpOpts.RequireContact = true
	httpOpts.Tracker = tracker
	httpOpts.Logger = logger
	if httpOpts.BaseURL == "" {
		httpOpts.BaseURL = DefaultBaseURL
	}
	client, err := httpclient.New(httpOpts)
	if err != nil {
		return nil, err
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	dataURL := strings.TrimRight(opts.DataURL, "/")
	if dataURL == "" {
		dataURL = DefaultDataURL
	}

	return &FilingSource{
		client:   client,
		tracker:  tracker,
		logger:   logger,
		parser:   gofeed.NewParser(),
		dataURL:  dataURL,
		pageSize: pageSize,
		exists:   opts.Exists,
		now:      time.Now,
	}, nil
}

func (s *FilingSource) ID() string {
	return SourceID
}

func (s *FilingSource) Tracker() *session.Tracker {
	return s.tracker
}

// Fetch scans the feed back to the cutoff day and downloads the ownership
// document of every filing in the window that is not stored yet.
func (s *FilingSource) Fetch(ctx context.Context, params FetchParams) ([]RawFiling, error) {
	now := params.Now
	if now.IsZero() {
		now = s.now()
	}
	daysBack := params.DaysBack
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	cutoff := cutoffDay(now, daysBack)
	s.skipped = 0

	cursor := pagination.NewCursor(s.pageSize, cutoff, func(e FeedEntry) time.Time { return e.Updated })
	entries, err := pagination.Drain(ctx, cursor, s.fetchPage)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Scanned current filings feed",
		zap.Int("entries", len(entries)),
		zap.Int("pages", cursor.PagesFetched()),
		zap.Time("cutoff", cutoff))

	seen := make(map[string]bool, len(entries))
	var raws []RawFiling
	for _, entry := range entries {
		// the feed pages past the cutoff, so older rows are dropped here
		if entry.Updated.Before(cutoff) || seen[entry.AccessionNumber] {
			continue
		}
		seen[entry.AccessionNumber] = true

		if s.exists != nil {
			stored, err := s.exists(ctx, entry.AccessionNumber)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// the insert step detects a stored filing again
				s.logger.Warn("Failed to check stored filing, fetching it anyway",
					zap.String("accession_number", entry.AccessionNumber), zap.Error(err))
				stored = false
			}
			if stored {
				s.logger.Debug("Filing already stored", zap.String("accession_number", entry.AccessionNumber))
				s.skipped++
				continue
			}
		}

		raw := RawFiling{Entry: entry}
		doc, err := s.fetchDocument(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Failed to retrieve ownership document",
				zap.String("accession_number", entry.AccessionNumber), zap.Error(err))
		} else {
			raw.XML = doc
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// Skipped returns how many filings the last Fetch left out because they were already stored
func (s *FilingSource) Skipped() int {
	return s.skipped
}

func cutoffDay(now time.Time, daysBack int) time.Time {
	day := now.AddDate(0, 0, -daysBack)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

func (s *FilingSource) fetchPage(ctx context.Context, offset, limit int) ([]FeedEntry, error) {
	query := url.Values{}
	query.Set("action", "getcurrent")
	query.Set("CIK", "")
	query.Set("type", "4")
	query.Set("owner", "only")
	query.Set("start", strconv.Itoa(offset))
	query.Set("count", strconv.Itoa(limit))
	query.Set("output", "atom")

	body, err := s.client.GetText(ctx, currentFeedPath+"?"+query.Encode(), "application/atom+xml")
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseString(body)
	if err != nil {
		s.tracker.TrackError(session.KindParseError, err.Error(), map[string]string{"offset": strconv.Itoa(offset)})
		return nil, apperrors.Wrap(err, apperrors.CodeParse, "failed to parse current filings feed")
	}

	entries := make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entry, ok := toFeedEntry(item)
		if !ok {
			s.tracker.TrackError(session.KindParseError, "feed entry without accession number",
				map[string]string{"title": item.Title})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toFeedEntry(item *gofeed.Item) (FeedEntry, bool) {
	entry := FeedEntry{
		Title: item.Title,
		CIK:   cikFromTitle(item.Title),
		Link:  item.Link,
	}
	if i := strings.LastIndex(item.GUID, "="); i >= 0 {
		entry.AccessionNumber = strings.TrimSpace(item.GUID[i+1:])
	}
	if len(item.Categories) > 0 {
		entry.Form = item.Categories[0]
	}
	switch {
	case item.UpdatedParsed != nil:
		entry.Updated = *item.UpdatedParsed
	case item.PublishedParsed != nil:
		entry.Updated = *item.PublishedParsed
	}
	return entry, entry.AccessionNumber != ""
}

// cikFromTitle returns the text inside the first parentheses, e.g. "4 - Doe Jane (0001111111) (Reporting)"
func cikFromTitle(title string) string {
	open := strings.Index(title, "(")
	if open < 0 {
		return ""
	}
	end := strings.Index(title[open:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(title[open+1 : open+end])
}

func (s *FilingSource) fetchDocument(ctx context.Context, entry FeedEntry) ([]byte, error) {
	cik, err := strconv.ParseInt(entry.CIK, 10, 64)
	if err != nil {
		s.tracker.TrackError(session.KindParseError, "invalid CIK in feed entry",
			map[string]string{"accession_number": entry.AccessionNumber, "cik": entry.CIK})
		return nil, apperrors.Wrap(err, apperrors.CodeParse, "invalid CIK "+entry.CIK)
	}
	base := fmt.Sprintf("Archives/edgar/data/%d/%s", cik, strings.ReplaceAll(entry.AccessionNumber, "-", ""))

	submission, err := s.client.GetText(ctx, base+"/"+entry.AccessionNumber+".txt", "text/plain")
	if err != nil {
		s.trackUnavailable(ctx, entry, err)
		return nil, err
	}

	name := xmlFilename(submission)
	if name == "" {
		s.tracker.TrackError(session.KindParseError, "no XML document in submission",
			map[string]string{"accession_number": entry.AccessionNumber})
		return nil, apperrors.New(apperrors.CodeParse, "no XML document in submission "+entry.AccessionNumber)
	}

	doc, err := s.client.GetText(ctx, base+"/"+name, "application/xml")
	if err != nil {
		s.trackUnavailable(ctx, entry, err)
		return nil, err
	}
	return []byte(doc), nil
}

// trackUnavailable ties a failed document download to its accession number
func (s *FilingSource) trackUnavailable(ctx context.Context, entry FeedEntry, err error) {
	if ctx.Err() != nil {
		return
	}
	s.tracker.TrackError(session.KindDocumentUnavailable, err.Error(), map[string]string{
		"accession_number": entry.AccessionNumber,
		"failure_kind":     httpclient.FailureKind(err),
	})
}

// xmlFilename finds the first "<FILENAME>name.xml" line of a full submission text file
func xmlFilename(submission string) string {
	const tag = "<FILENAME>"
	rest := submission
	for {
		i := strings.Index(rest, tag)
		if i < 0 {
			return ""
		}
		rest = rest[i+len(tag):]
		line := rest
		if nl := strings.IndexAny(line, "\r\n"); nl >= 0 {
			line = line[:nl]
		}
		line = strings.TrimSpace(line)
		if strings.HasSuffix(strings.ToLower(line), ".xml") {
			return line
		}
	}
}

// Parse decodes the ownership document. Filings whose document is missing or
// malformed are recorded as parse errors and yield nil.
func (s *FilingSource) Parse(raw RawFiling) (*model.Filing, error) {
	if raw.XML == nil {
		return nil, nil
	}
	doc, err := decodeOwnershipDocument(raw.XML)
	if err != nil {
		s.tracker.TrackError(session.KindParseError, err.Error(),
			map[string]string{"accession_number": raw.Entry.AccessionNumber})
		return nil, nil
	}
	return doc.toFiling(raw.Entry), nil
}

// Validate requires the identifiers and a dated, coded row for every transaction
func (s *FilingSource) Validate(f *model.Filing) bool {
	if f.AccessionNumber == "" || f.IssuerCIK == "" {
		return false
	}
	for _, tx := range f.Transactions {
		if tx.TransactionDate == nil || tx.Code == "" {
			return false
		}
		switch tx.AcquiredDisposed {
		case "", "A", "D":
		default:
			return false
		}
	}
	return true
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// LookupCIK resolves a ticker symbol to a zero-padded 10 digit CIK
func (s *FilingSource) LookupCIK(ctx context.Context, ticker string) (string, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return "", apperrors.New(apperrors.CodeInvalidArg, "ticker is required")
	}

	var companies map[string]tickerEntry
	if err := s.client.GetJSON(ctx, tickersPath, nil, &companies); err != nil {
		return "", err
	}
	for _, c := range companies {
		if strings.EqualFold(c.Ticker, ticker) {
			return fmt.Sprintf("%010d", c.CIK), nil
		}
	}
	return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("ticker %s not found", strings.ToUpper(ticker)))
}
