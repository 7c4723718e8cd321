package repository

import (
	"errors"
	"strings"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// handlePostgreSQLError converts PostgreSQL-specific errors to appropriate AppError codes.
// Anything not attributable to the data itself is a PERSISTENCE_ERROR.
func handlePostgreSQLError(err error, operation string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		// pool, network or context failure
		return apperrors.Wrap(err, apperrors.CodePersistence, operation)
	}

	switch pgErr.Code {
	case "23505": // UNIQUE_VIOLATION
		return handleUniqueViolation(pgErr, operation)

	case "23503": // FOREIGN_KEY_VIOLATION
		return handleForeignKeyViolation(pgErr, operation)

	case "23502": // NOT_NULL_VIOLATION
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": required field is missing")

	case "23514": // CHECK_VIOLATION
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": data violates check constraint")

	case "22P02", "22007", "22008": // invalid text representation / datetime format / overflow
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": invalid value")

	case "42P01": // UNDEFINED_TABLE
		return apperrors.Wrap(err, apperrors.CodePersistence, "database schema error: table not found")

	case "42703": // UNDEFINED_COLUMN
		return apperrors.Wrap(err, apperrors.CodePersistence, "database schema error: column not found")

	case "08000", "08003", "08006": // CONNECTION_EXCEPTION variants
		return apperrors.Wrap(err, apperrors.CodePersistence, "database connection error")

	case "53300": // TOO_MANY_CONNECTIONS
		return apperrors.Wrap(err, apperrors.CodePersistence, "database connection limit reached")

	default:
		message := operation + ": database error (PostgreSQL code: " + pgErr.Code + ")"
		return apperrors.Wrap(err, apperrors.CodePersistence, message)
	}
}

// handleUniqueViolation names the resource behind a unique constraint
func handleUniqueViolation(pgErr *pgconn.PgError, operation string) *apperrors.AppError {
	switch pgErr.ConstraintName {
	case "channel_pkey":
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, "channel with this ID already exists")
	case "video_pkey":
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, "video with this ID already exists")
	case "filing_pkey":
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, "filing with this accession number already exists")
	case "filing_transaction_pkey":
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, "duplicate transaction sequence in filing")
	}
	return apperrors.Wrap(pgErr, apperrors.CodeConflict, operation+": resource already exists")
}

// handleForeignKeyViolation names the missing parent of a foreign key
func handleForeignKeyViolation(pgErr *pgconn.PgError, operation string) *apperrors.AppError {
	constraintName := pgErr.ConstraintName

	switch {
	case strings.Contains(constraintName, "channel_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, "referenced channel does not exist")

	case strings.Contains(constraintName, "video_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, "referenced video does not exist")

	case strings.Contains(constraintName, "accession_number"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, "referenced filing does not exist")

	default:
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, operation+": referenced resource does not exist")
	}
}
