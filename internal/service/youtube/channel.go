package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/model"
	"go.uber.org/zap"
)

// BacklogSize is how many of the newest uploads channel initialization ingests
const BacklogSize = 100

// ytDlpPlaylist represents yt-dlp --dump-single-json output for a channel's videos tab
type ytDlpPlaylist struct {
	ChannelID   string       `json:"channel_id"`
	Channel     string       `json:"channel"`
	Uploader    string       `json:"uploader"`
	Description string       `json:"description"`
	Entries     []ytDlpEntry `json:"entries"`
}

// ytDlpEntry represents one flat playlist entry
type ytDlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"` // YYYYMMDD
}

// InitResult summarizes a channel initialization
type InitResult struct {
	Channel      *model.Channel
	VideosStored int
}

// InitializeChannel ingests the backlog of a channel handle and marks it initialized
func (s *Service) InitializeChannel(ctx context.Context, handle string) (*InitResult, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, errors.New(errors.CodeInvalidArg, "channel handle is required")
	}

	channelURL := fmt.Sprintf("https://www.youtube.com/@%s/videos", handle)
	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--playlist-end", fmt.Sprintf("%d", BacklogSize),
		channelURL,
	}

	output, err := s.cmdRunner.Run(ctx, "yt-dlp", args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "failed to fetch channel videos with yt-dlp")
	}

	var playlist ytDlpPlaylist
	if err := json.Unmarshal(output, &playlist); err != nil {
		return nil, errors.Wrap(err, errors.CodeParse, "failed to parse yt-dlp output")
	}
	if playlist.ChannelID == "" {
		return nil, errors.New(errors.CodeParse, "yt-dlp output has no channel id")
	}

	name := playlist.Channel
	if name == "" {
		name = playlist.Uploader
	}
	channel := &model.Channel{
		ID:          playlist.ChannelID,
		Name:        name,
		Description: playlist.Description,
	}
	if err := s.channels.Upsert(ctx, channel); err != nil {
		return nil, err
	}

	videos := make([]*model.Video, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry.ID == "" {
			continue
		}
		videos = append(videos, &model.Video{
			ID:              entry.ID,
			ChannelID:       channel.ID,
			Title:           entry.Title,
			Duration:        int(entry.Duration),
			PublicationDate: parseUploadDate(entry.UploadDate),
		})
	}
	stored, err := s.videos.UpsertBatch(ctx, videos)
	if err != nil {
		return nil, err
	}

	if err := s.channels.MarkInitialized(ctx, channel.ID); err != nil {
		return nil, err
	}
	channel.Initialized = true

	s.logger.Info("Channel initialized",
		zap.String("channel_id", channel.ID),
		zap.String("channel_name", channel.Name),
		zap.Int("videos", stored))
	return &InitResult{Channel: channel, VideosStored: stored}, nil
}

func parseUploadDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return nil
	}
	return &t
}
