package youtube

import (
	"context"

	"github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/pipeline"
	"github.com/Taichi-iskw/ingest/internal/session"
	ytsource "github.com/Taichi-iskw/ingest/internal/source/youtube"
	"go.uber.org/zap"
)

// DiscoverResult lists the videos stored by one discovery run
type DiscoverResult struct {
	NewVideos map[string][]string // channel id -> new video ids
	Failed    int
	Stats     session.Stats
}

// DiscoverNewVideos checks every initialized channel for uploads not stored yet
func (s *Service) DiscoverNewVideos(ctx context.Context) (*DiscoverResult, error) {
	if s.videoSource == nil {
		return nil, errors.New(errors.CodeConfiguration, "video source is not configured")
	}

	channels, err := s.channels.ListInitialized(ctx)
	if err != nil {
		return nil, err
	}

	result := &DiscoverResult{NewVideos: make(map[string][]string, len(channels))}
	params := ytsource.DiscoverParams{ChannelIDs: make([]string, 0, len(channels))}
	for _, ch := range channels {
		params.ChannelIDs = append(params.ChannelIDs, ch.ID)
		result.NewVideos[ch.ID] = []string{}
	}
	if len(params.ChannelIDs) == 0 {
		s.logger.Info("No initialized channels to check")
		return result, nil
	}

	videos, stats, err := pipeline.Collect(ctx, s.videoSource, params, s.metrics)
	result.Stats = stats
	if err != nil {
		return result, err
	}

	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		exists, err := s.videos.Exists(ctx, video.ID)
		if err != nil {
			s.logger.Error("Failed to check stored video",
				zap.String("video_id", video.ID),
				zap.String("error_type", session.KindPersistenceError),
				zap.Error(err))
			result.Failed++
			continue
		}
		if exists {
			continue
		}
		if err := s.videos.Upsert(ctx, video); err != nil {
			s.logger.Error("Failed to store video",
				zap.String("video_id", video.ID),
				zap.String("channel_id", video.ChannelID),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.NewVideos[video.ChannelID] = append(result.NewVideos[video.ChannelID], video.ID)
		s.logger.Info("New video", zap.String("video_id", video.ID), zap.String("title", video.Title))
	}

	for channelID, ids := range result.NewVideos {
		s.logger.Info("Channel checked", zap.String("channel_id", channelID), zap.Int("new_videos", len(ids)))
	}
	return result, nil
}
