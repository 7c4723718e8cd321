package repository

import (
	"context"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// ProcessingRepository tracks per-step processing state of videos
type ProcessingRepository interface {
	// FindMissing returns ids of stored videos that have no processing row yet
	FindMissing(ctx context.Context) ([]string, error)

	// RecordStep creates the processing row if needed and updates only the given step's columns
	RecordStep(ctx context.Context, videoID string, step model.ProcessingStep, status string, outputPath *string) error

	// Get retrieves the processing row of a video
	Get(ctx context.Context, videoID string) (*model.VideoProcessing, error)
}
