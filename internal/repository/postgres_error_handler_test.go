package repository

import (
	"context"
	"testing"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestHandlePostgreSQLError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "channel primary key",
			err:         &pgconn.PgError{Code: "23505", ConstraintName: "channel_pkey"},
			wantCode:    apperrors.CodeConflict,
			wantMessage: "channel with this ID already exists",
		},
		{
			name:        "filing primary key",
			err:         &pgconn.PgError{Code: "23505", ConstraintName: "filing_pkey"},
			wantCode:    apperrors.CodeConflict,
			wantMessage: "filing with this accession number already exists",
		},
		{
			name:        "video references missing channel",
			err:         &pgconn.PgError{Code: "23503", ConstraintName: "video_channel_id_fkey"},
			wantCode:    apperrors.CodeDependency,
			wantMessage: "referenced channel does not exist",
		},
		{
			name:        "processing references missing video",
			err:         &pgconn.PgError{Code: "23503", ConstraintName: "video_processing_video_id_fkey"},
			wantCode:    apperrors.CodeDependency,
			wantMessage: "referenced video does not exist",
		},
		{
			name:     "not null",
			err:      &pgconn.PgError{Code: "23502"},
			wantCode: apperrors.CodeInvalidArg,
		},
		{
			name:        "connection failure",
			err:         &pgconn.PgError{Code: "08006"},
			wantCode:    apperrors.CodePersistence,
			wantMessage: "database connection error",
		},
		{
			name:        "unknown code",
			err:         &pgconn.PgError{Code: "XX000"},
			wantCode:    apperrors.CodePersistence,
			wantMessage: "test op: database error (PostgreSQL code: XX000)",
		},
		{
			name:        "non postgres error",
			err:         context.DeadlineExceeded,
			wantCode:    apperrors.CodePersistence,
			wantMessage: "test op",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := handlePostgreSQLError(tt.err, "test op")
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, appErr.Message)
			}
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.Nil(t, handlePostgreSQLError(nil, "noop"))
}
