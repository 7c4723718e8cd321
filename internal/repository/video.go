package repository

import (
	"context"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// VideoRepository defines operations for Video persistence
type VideoRepository interface {
	// Upsert inserts the video or refreshes it on video_id conflict
	Upsert(ctx context.Context, video *model.Video) error

	// UpsertBatch merges many videos atomically and returns how many were stored
	UpsertBatch(ctx context.Context, videos []*model.Video) (int, error)

	// Exists reports whether a video row is stored
	Exists(ctx context.Context, id string) (bool, error)

	// GetByID retrieves a video by its ID
	GetByID(ctx context.Context, id string) (*model.Video, error)
}
