package repository

import (
	"context"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// ChannelRepository defines operations for Channel persistence
type ChannelRepository interface {
	// Upsert inserts the channel or refreshes it on channel_id conflict
	Upsert(ctx context.Context, channel *model.Channel) error

	// MarkInitialized flags the channel's backlog as ingested. Returns NOT_FOUND when no row exists.
	MarkInitialized(ctx context.Context, channelID string) error

	// GetByID retrieves a channel by its ID
	GetByID(ctx context.Context, id string) (*model.Channel, error)

	// ListInitialized returns channels whose backlog has been ingested
	ListInitialized(ctx context.Context) ([]*model.Channel, error)
}
