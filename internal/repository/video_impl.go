package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/jackc/pgx/v5"
)

// videoRepository implements VideoRepository using PostgreSQL
type videoRepository struct {
	pool Pool
	now  func() time.Time
}

// NewVideoRepository creates a new instance of VideoRepository
func NewVideoRepository(pool Pool) VideoRepository {
	return &videoRepository{
		pool: pool,
		now:  time.Now,
	}
}

const videoMergeSet = `ON CONFLICT (video_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			video_name = EXCLUDED.video_name,
			video_duration = EXCLUDED.video_duration,
			publication_date = COALESCE(EXCLUDED.publication_date, video.publication_date),
			update_datetime = GREATEST(video.update_datetime, EXCLUDED.update_datetime)`

var videoColumns = []string{"video_id", "channel_id", "video_name", "video_duration", "publication_date", "update_datetime"}

// Upsert inserts or updates a video by video_id. A missing publication date keeps the stored one.
// video.UpdateDatetime is set to the stored value.
func (r *videoRepository) Upsert(ctx context.Context, video *model.Video) error {
	sql := `INSERT INTO video (video_id, channel_id, video_name, video_duration, publication_date, update_datetime)
		VALUES ($1, $2, $3, $4, $5, $6)
		` + videoMergeSet + `
		RETURNING update_datetime`

	err := r.pool.QueryRow(ctx, sql, video.ID, video.ChannelID, video.Title, video.Duration, video.PublicationDate, r.now()).
		Scan(&video.UpdateDatetime)
	if err != nil {
		return handlePostgreSQLError(err, "failed to upsert video")
	}
	return nil
}

// UpsertBatch merges many videos in one transaction: the rows are copied into a
// staging table and merged with the same rules as Upsert. A video id listed twice
// is merged once. Returns the number of videos stored.
func (r *videoRepository) UpsertBatch(ctx context.Context, videos []*model.Video) (int, error) {
	if len(videos) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, handlePostgreSQLError(err, "failed to begin transaction")
	}
	abort := func(err error, message string) (int, error) {
		_ = tx.Rollback(ctx)
		return 0, handlePostgreSQLError(err, message)
	}

	_, err = tx.Exec(ctx, `CREATE TEMP TABLE video_stage
		(LIKE video INCLUDING DEFAULTS) ON COMMIT DROP`)
	if err != nil {
		return abort(err, "failed to create video staging table")
	}

	now := r.now()
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"video_stage"}, videoColumns,
		pgx.CopyFromSlice(len(videos), func(i int) ([]any, error) {
			v := videos[i]
			return []any{v.ID, v.ChannelID, v.Title, v.Duration, v.PublicationDate, now}, nil
		}))
	if err != nil {
		return abort(err, "failed to copy videos")
	}

	rows, err := tx.Query(ctx, `INSERT INTO video (video_id, channel_id, video_name, video_duration, publication_date, update_datetime)
		SELECT DISTINCT ON (video_id) video_id, channel_id, video_name, video_duration, publication_date, update_datetime
		FROM video_stage ORDER BY video_id
		`+videoMergeSet+`
		RETURNING video_id, update_datetime`)
	if err != nil {
		return abort(err, "failed to merge videos")
	}
	stored := make(map[string]time.Time, len(videos))
	for rows.Next() {
		var id string
		var updated time.Time
		if err := rows.Scan(&id, &updated); err != nil {
			rows.Close()
			return abort(err, "failed to scan merged video")
		}
		stored[id] = updated
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return abort(err, "failed to merge videos")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, handlePostgreSQLError(err, "failed to commit videos")
	}
	for _, v := range videos {
		if updated, ok := stored[v.ID]; ok {
			v.UpdateDatetime = updated
		}
	}
	return len(stored), nil
}

// Exists reports whether the video is stored
func (r *videoRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM video WHERE video_id = $1)", id).Scan(&exists)
	if err != nil {
		return false, handlePostgreSQLError(err, "failed to check video")
	}
	return exists, nil
}

// GetByID retrieves a video by its ID
func (r *videoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	sql := `SELECT video_id, channel_id, video_name, video_duration, publication_date, update_datetime
		FROM video WHERE video_id = $1`
	row := r.pool.QueryRow(ctx, sql, id)

	var video model.Video
	err := row.Scan(&video.ID, &video.ChannelID, &video.Title, &video.Duration, &video.PublicationDate, &video.UpdateDatetime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "video not found")
		}
		return nil, handlePostgreSQLError(err, "failed to get video")
	}

	return &video, nil
}
