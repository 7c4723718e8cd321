package youtube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/pipeline"
	"github.com/Taichi-iskw/ingest/internal/session"
	ytsource "github.com/Taichi-iskw/ingest/internal/source/youtube"
	"go.uber.org/zap"
)

// TranscriptResult summarizes one transcript collection run
type TranscriptResult struct {
	Completed []string
	Existing  []string
	Failed    []string
	Stats     session.Stats
}

// TranscriptPath returns where the transcript of a video is written
func (s *Service) TranscriptPath(videoID string) string {
	return filepath.Join(s.transcriptDir, videoID+".txt")
}

// CollectTranscripts fetches transcripts for stored videos without a processing
// record and records the extract step for each. limit <= 0 means all of them.
func (s *Service) CollectTranscripts(ctx context.Context, limit int, language string) (*TranscriptResult, error) {
	if s.transcripts == nil {
		return nil, errors.New(errors.CodeConfiguration, "transcript source is not configured")
	}
	if s.transcriptDir == "" {
		return nil, errors.New(errors.CodeConfiguration, "transcript directory is not configured")
	}
	if err := os.MkdirAll(s.transcriptDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "failed to create transcript directory")
	}

	missing, err := s.processing.FindMissing(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(missing) > limit {
		missing = missing[:limit]
	}

	result := &TranscriptResult{}
	var pending []string
	for _, videoID := range missing {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		path := s.TranscriptPath(videoID)
		if _, err := os.Stat(path); err == nil {
			if s.recordExtract(ctx, result, videoID, model.StatusCompleted, &path) {
				result.Existing = append(result.Existing, videoID)
			}
			continue
		}
		pending = append(pending, videoID)
	}
	if len(pending) == 0 {
		return result, nil
	}

	transcripts, stats, err := pipeline.Collect(ctx, s.transcripts, ytsource.TranscriptParams{VideoIDs: pending, Language: language}, s.metrics)
	result.Stats = stats
	if err != nil {
		return result, err
	}

	byVideo := make(map[string]*model.Transcript, len(transcripts))
	for _, tr := range transcripts {
		byVideo[tr.VideoID] = tr
	}

	for _, videoID := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		tr, ok := byVideo[videoID]
		if !ok {
			if s.recordExtract(ctx, result, videoID, model.StatusFailed, nil) {
				result.Failed = append(result.Failed, videoID)
			}
			continue
		}

		path := s.TranscriptPath(videoID)
		if err := os.WriteFile(path, []byte(tr.Text()), 0644); err != nil {
			s.logger.Error("Failed to write transcript", zap.String("video_id", videoID), zap.Error(err))
			if s.recordExtract(ctx, result, videoID, model.StatusFailed, nil) {
				result.Failed = append(result.Failed, videoID)
			}
			continue
		}
		if s.recordExtract(ctx, result, videoID, model.StatusCompleted, &path) {
			result.Completed = append(result.Completed, videoID)
		}
	}

	s.logger.Info("Transcript collection finished",
		zap.Int("completed", len(result.Completed)),
		zap.Int("existing", len(result.Existing)),
		zap.Int("failed", len(result.Failed)),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", stats.SuccessRate())))
	return result, nil
}

// recordExtract records the extract step of one video. A storage failure is
// logged and counts the video as failed instead of ending the run.
func (s *Service) recordExtract(ctx context.Context, result *TranscriptResult, videoID, status string, path *string) bool {
	err := s.processing.RecordStep(ctx, videoID, model.StepExtract, status, path)
	if err == nil {
		return true
	}
	s.logger.Error("Failed to record processing step",
		zap.String("video_id", videoID),
		zap.String("status", status),
		zap.String("error_type", session.KindPersistenceError),
		zap.Error(err))
	result.Failed = append(result.Failed, videoID)
	return false
}
