package youtube

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"github.com/Taichi-iskw/ingest/internal/logging"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/session"
	"go.uber.org/zap"
)

const (
	// VideoSourceID identifies new-video discovery
	VideoSourceID = "youtube_videos"

	DefaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"
	DefaultMaxResults = 10
)

// VideoOptions configures a VideoSource
type VideoOptions struct {
	HTTP   httpclient.Options
	APIKey string
	Logger *zap.Logger
}

// DiscoverParams lists the channels whose newest uploads are queried
type DiscoverParams struct {
	ChannelIDs []string
	MaxResults int
}

// SearchItem is one element of a search.list response
type SearchItem struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		PublishedAt  string `json:"publishedAt"`
		ChannelID    string `json:"channelId"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

type searchResponse struct {
	Items []SearchItem `json:"items"`
}

// RawVideo pairs a search result with the channel it was requested for
type RawVideo struct {
	ChannelID string
	Item      SearchItem
}

func (r RawVideo) String() string {
	return fmt.Sprintf("%s/%s %q", r.ChannelID, r.Item.ID.VideoID, r.Item.Snippet.Title)
}

// VideoSource discovers recent uploads through the YouTube Data API
type VideoSource struct {
	client  *httpclient.Client
	tracker *session.Tracker
	logger  *zap.Logger
	apiKey  string
}

func NewVideoSource(opts VideoOptions) (*VideoSource, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeConfiguration, "YouTube API key is required")
	}

	logger := logging.ForSource(opts.Logger, VideoSourceID)
	tracker := session.NewTracker(VideoSourceID, logger)

	httpOpts := opts.HTTP
	httpOpts.SourceID = VideoSourceID
	httpOpts.Tracker = tracker
	httpOpts.Logger = logger
	if httpOpts.BaseURL == "" {
		httpOpts.BaseURL = DefaultAPIBaseURL
	}
	client, err := httpclient.New(httpOpts)
	if err != nil {
		return nil, err
	}

	return &VideoSource{client: client, tracker: tracker, logger: logger, apiKey: opts.APIKey}, nil
}

func (s *VideoSource) ID() string {
	return VideoSourceID
}

func (s *VideoSource) Tracker() *session.Tracker {
	return s.tracker
}

// Fetch queries every channel in turn. A channel whose request fails is
// skipped; the failure is already on the session.
func (s *VideoSource) Fetch(ctx context.Context, params DiscoverParams) ([]RawVideo, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var raws []RawVideo
	for _, channelID := range params.ChannelIDs {
		query := url.Values{}
		query.Set("part", "snippet")
		query.Set("channelId", channelID)
		query.Set("maxResults", strconv.Itoa(maxResults))
		query.Set("order", "date")
		query.Set("type", "video")
		query.Set("key", s.apiKey)

		var resp searchResponse
		if err := s.client.GetJSON(ctx, "search", query, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("No videos found or API error", zap.String("channel_id", channelID), zap.Error(err))
			continue
		}

		s.logger.Debug("Fetched channel uploads", zap.String("channel_id", channelID), zap.Int("items", len(resp.Items)))
		for _, item := range resp.Items {
			raws = append(raws, RawVideo{ChannelID: channelID, Item: item})
		}
	}
	return raws, nil
}

// Parse maps a search result to a video. Results without a video id are parse errors.
func (s *VideoSource) Parse(raw RawVideo) (*model.Video, error) {
	if raw.Item.ID.VideoID == "" {
		s.tracker.TrackError(session.KindParseError, "search result without video id",
			map[string]string{"channel_id": raw.ChannelID, "kind": raw.Item.ID.Kind})
		return nil, nil
	}

	channelID := raw.Item.Snippet.ChannelID
	if channelID == "" {
		channelID = raw.ChannelID
	}
	video := &model.Video{
		ID:        raw.Item.ID.VideoID,
		ChannelID: channelID,
		// the API returns titles HTML-escaped
		Title: html.UnescapeString(raw.Item.Snippet.Title),
	}
	if published, err := time.Parse(time.RFC3339, raw.Item.Snippet.PublishedAt); err == nil {
		published = published.UTC()
		video.PublicationDate = &published
	}
	return video, nil
}

func (s *VideoSource) Validate(v *model.Video) bool {
	return v.ID != "" && v.ChannelID != "" && v.Title != ""
}
