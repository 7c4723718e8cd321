package youtube

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"github.com/Taichi-iskw/ingest/internal/logging"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/session"
	"go.uber.org/zap"
)

const (
	// TranscriptSourceID identifies transcript collection
	TranscriptSourceID = "youtube_transcripts"

	DefaultSiteBaseURL = "https://www.youtube.com"
	DefaultLanguage    = "en"
)

// TranscriptOptions configures a TranscriptSource. Transcript endpoints block
// datacenter addresses, so HTTP.Proxy is normally set.
type TranscriptOptions struct {
	HTTP     httpclient.Options
	Language string
	Logger   *zap.Logger
}

// TranscriptParams lists the videos to fetch captions for
type TranscriptParams struct {
	VideoIDs []string
	Language string
}

// RawTranscript is the caption track markup of one video. Body is empty when
// the track could not be retrieved.
type RawTranscript struct {
	VideoID  string
	Language string
	Body     string
}

func (r RawTranscript) String() string {
	return fmt.Sprintf("%s[%s] %s", r.VideoID, r.Language, r.Body)
}

// TranscriptSource downloads caption tracks from the timedtext endpoint
type TranscriptSource struct {
	client   *httpclient.Client
	tracker  *session.Tracker
	logger   *zap.Logger
	language string
}

func NewTranscriptSource(opts TranscriptOptions) (*TranscriptSource, error) {
	logger := logging.ForSource(opts.Logger, TranscriptSourceID)
	tracker := session.NewTracker(TranscriptSourceID, logger)

	httpOpts := opts.HTTP
	httpOpts.SourceID = TranscriptSourceID
	httpOpts.Tracker = tracker
	httpOpts.Logger = logger
	if httpOpts.BaseURL == "" {
		httpOpts.BaseURL = DefaultSiteBaseURL
	}
	client, err := httpclient.New(httpOpts)
	if err != nil {
		return nil, err
	}

	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	return &TranscriptSource{client: client, tracker: tracker, logger: logger, language: language}, nil
}

func (s *TranscriptSource) ID() string {
	return TranscriptSourceID
}

func (s *TranscriptSource) Tracker() *session.Tracker {
	return s.tracker
}

// Fetch returns one raw transcript per requested video, in order
func (s *TranscriptSource) Fetch(ctx context.Context, params TranscriptParams) ([]RawTranscript, error) {
	language := params.Language
	if language == "" {
		language = s.language
	}

	raws := make([]RawTranscript, 0, len(params.VideoIDs))
	for _, videoID := range params.VideoIDs {
		query := url.Values{}
		query.Set("v", videoID)
		query.Set("lang", language)

		raw := RawTranscript{VideoID: videoID, Language: language}
		body, err := s.client.GetText(ctx, "api/timedtext?"+query.Encode(), "text/xml")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Failed to fetch transcript", zap.String("video_id", videoID), zap.Error(err))
		} else {
			raw.Body = body
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// Parse reads the <text start dur> elements of a caption track.
// A track without any caption line is absent.
func (s *TranscriptSource) Parse(raw RawTranscript) (*model.Transcript, error) {
	if strings.TrimSpace(raw.Body) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Body))
	if err != nil {
		s.tracker.TrackError(session.KindParseError, err.Error(), map[string]string{"video_id": raw.VideoID})
		return nil, nil
	}

	transcript := &model.Transcript{VideoID: raw.VideoID, Language: raw.Language}
	doc.Find("text").Each(func(_ int, sel *goquery.Selection) {
		// caption text arrives escaped twice
		text := strings.TrimSpace(html.UnescapeString(sel.Text()))
		if text == "" {
			return
		}
		start, _ := strconv.ParseFloat(sel.AttrOr("start", "0"), 64)
		dur, _ := strconv.ParseFloat(sel.AttrOr("dur", "0"), 64)
		transcript.Segments = append(transcript.Segments, model.TranscriptSegment{
			Start:    start,
			Duration: dur,
			Text:     text,
		})
	})

	if len(transcript.Segments) == 0 {
		s.tracker.TrackError(session.KindParseError, "transcript has no caption lines",
			map[string]string{"video_id": raw.VideoID})
		return nil, nil
	}
	return transcript, nil
}

func (s *TranscriptSource) Validate(t *model.Transcript) bool {
	return t.VideoID != "" && strings.TrimSpace(t.Text()) != ""
}
