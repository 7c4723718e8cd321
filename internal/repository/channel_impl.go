package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool interface for abstracting pgx connection pool
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// channelRepository implements ChannelRepository using PostgreSQL
type channelRepository struct {
	pool Pool
	now  func() time.Time
}

// NewChannelRepository creates a new instance of ChannelRepository
func NewChannelRepository(pool Pool) ChannelRepository {
	return &channelRepository{
		pool: pool,
		now:  time.Now,
	}
}

// Upsert inserts or updates a channel.
// initialized never flips back to false, and update_datetime never moves backwards.
// channel.UpdateDatetime is set to the stored value.
func (r *channelRepository) Upsert(ctx context.Context, channel *model.Channel) error {
	sql := `INSERT INTO channel (channel_id, channel_name, channel_description, initialized, update_datetime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel_id) DO UPDATE SET
			channel_name = EXCLUDED.channel_name,
			channel_description = EXCLUDED.channel_description,
			initialized = channel.initialized OR EXCLUDED.initialized,
			update_datetime = GREATEST(channel.update_datetime, EXCLUDED.update_datetime)
		RETURNING update_datetime`

	err := r.pool.QueryRow(ctx, sql, channel.ID, channel.Name, channel.Description, channel.Initialized, r.now()).
		Scan(&channel.UpdateDatetime)
	if err != nil {
		return handlePostgreSQLError(err, "failed to upsert channel")
	}
	return nil
}

// MarkInitialized sets initialized only if the channel exists
func (r *channelRepository) MarkInitialized(ctx context.Context, channelID string) error {
	sql := "UPDATE channel SET initialized = TRUE, update_datetime = $2 WHERE channel_id = $1"
	tag, err := r.pool.Exec(ctx, sql, channelID, r.now())
	if err != nil {
		return handlePostgreSQLError(err, "failed to mark channel initialized")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "channel not found: "+channelID)
	}
	return nil
}

// GetByID retrieves a channel by its ID
func (r *channelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	sql := `SELECT channel_id, channel_name, channel_description, initialized, update_datetime
		FROM channel WHERE channel_id = $1`
	row := r.pool.QueryRow(ctx, sql, id)

	var channel model.Channel
	err := row.Scan(&channel.ID, &channel.Name, &channel.Description, &channel.Initialized, &channel.UpdateDatetime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "channel not found")
		}
		return nil, handlePostgreSQLError(err, "failed to get channel")
	}

	return &channel, nil
}

// ListInitialized returns initialized channels ordered by ID
func (r *channelRepository) ListInitialized(ctx context.Context) ([]*model.Channel, error) {
	sql := `SELECT channel_id, channel_name, channel_description, initialized, update_datetime
		FROM channel WHERE initialized ORDER BY channel_id`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list channels")
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		var channel model.Channel
		err := rows.Scan(&channel.ID, &channel.Name, &channel.Description, &channel.Initialized, &channel.UpdateDatetime)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan channel row")
		}
		channels = append(channels, &channel)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to iterate channel rows")
	}

	return channels, nil
}
