package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/jackc/pgx/v5"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// processingRepository implements ProcessingRepository using PostgreSQL
type processingRepository struct {
	pool Pool
	now  func() time.Time
}

// NewProcessingRepository creates a new instance of ProcessingRepository
func NewProcessingRepository(pool Pool) ProcessingRepository {
	return &processingRepository{
		pool: pool,
		now:  time.Now,
	}
}

// FindMissing returns video ids with no video_processing row, newest first
func (r *processingRepository) FindMissing(ctx context.Context) ([]string, error) {
	sql := `SELECT v.video_id FROM video v
		LEFT JOIN video_processing vp ON v.video_id = vp.video_id
		WHERE vp.video_id IS NULL
		ORDER BY v.publication_date DESC NULLS LAST, v.video_id`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to find missing processing records")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan video id")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to iterate video ids")
	}

	return ids, nil
}

// RecordStep writes status, timestamp and output path for one step in a single transaction
func (r *processingRepository) RecordStep(ctx context.Context, videoID string, step model.ProcessingStep, status string, outputPath *string) error {
	if !step.Valid() {
		return apperrors.New(apperrors.CodeConfiguration, "invalid processing step: "+string(step))
	}
	switch status {
	case model.StatusPending, model.StatusCompleted, model.StatusFailed:
	default:
		return apperrors.New(apperrors.CodeInvalidArg, "invalid processing status: "+status)
	}

	update, args, err := psql.Update("video_processing").
		Set(string(step)+"_status", status).
		Set(string(step)+"_datetime", r.now()).
		Set(string(step)+"_file", outputPath).
		Where(sq.Eq{"video_id": videoID}).
		ToSql()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build processing update")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return handlePostgreSQLError(err, "failed to begin transaction")
	}

	_, err = tx.Exec(ctx, "INSERT INTO video_processing (video_id) VALUES ($1) ON CONFLICT (video_id) DO NOTHING", videoID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return handlePostgreSQLError(err, "failed to create processing record")
	}

	if _, err = tx.Exec(ctx, update, args...); err != nil {
		_ = tx.Rollback(ctx)
		return handlePostgreSQLError(err, "failed to update processing step")
	}

	if err := tx.Commit(ctx); err != nil {
		return handlePostgreSQLError(err, "failed to commit processing step")
	}
	return nil
}

// Get retrieves the processing row of a video
func (r *processingRepository) Get(ctx context.Context, videoID string) (*model.VideoProcessing, error) {
	sql := `SELECT video_id, extract_status, extract_datetime, extract_file,
			summarize_status, summarize_datetime, summarize_file
		FROM video_processing WHERE video_id = $1`

	var vp model.VideoProcessing
	err := r.pool.QueryRow(ctx, sql, videoID).Scan(
		&vp.VideoID,
		&vp.ExtractStatus,
		&vp.ExtractDatetime,
		&vp.ExtractFile,
		&vp.SummarizeStatus,
		&vp.SummarizeDatetime,
		&vp.SummarizeFile,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "processing record not found")
		}
		return nil, handlePostgreSQLError(err, "failed to get processing record")
	}
	return &vp, nil
}
