package repository

import (
	"context"
	"fmt"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// filingRepository implements FilingRepository using PostgreSQL
type filingRepository struct {
	pool Pool
}

// NewFilingRepository creates a new instance of FilingRepository
func NewFilingRepository(pool Pool) FilingRepository {
	return &filingRepository{
		pool: pool,
	}
}

// Exists reports whether the accession number is already stored
func (r *filingRepository) Exists(ctx context.Context, accessionNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM filing WHERE accession_number = $1)", accessionNumber).Scan(&exists)
	if err != nil {
		return false, handlePostgreSQLError(err, "failed to check filing")
	}
	return exists, nil
}

// InsertWithTransactions inserts the filing row and its transactions atomically
func (r *filingRepository) InsertWithTransactions(ctx context.Context, filing *model.Filing) error {
	filingSQL := `INSERT INTO filing (accession_number, cik, title, form, filing_date,
			issuer_cik, issuer_name, issuer_ticker, owner_cik, owner_name,
			is_director, is_officer, is_ten_percent_owner, officer_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	transactionSQL := `INSERT INTO filing_transaction (accession_number, sequence, transaction_type,
			security_title, transaction_date, transaction_code, shares, price_per_share,
			acquired_disposed, shares_owned_following)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return handlePostgreSQLError(err, "failed to begin transaction")
	}

	_, err = tx.Exec(ctx, filingSQL,
		filing.AccessionNumber,
		filing.CIK,
		filing.Title,
		filing.Form,
		filing.FilingDate,
		filing.IssuerCIK,
		filing.IssuerName,
		filing.IssuerTicker,
		filing.OwnerCIK,
		filing.OwnerName,
		filing.IsDirector,
		filing.IsOfficer,
		filing.IsTenPercentOwner,
		filing.OfficerTitle,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return handlePostgreSQLError(err, "failed to insert filing")
	}

	for i, t := range filing.Transactions {
		_, err = tx.Exec(ctx, transactionSQL,
			filing.AccessionNumber,
			t.Sequence,
			t.Type,
			t.SecurityTitle,
			t.TransactionDate,
			t.Code,
			t.Shares,
			t.PricePerShare,
			t.AcquiredDisposed,
			t.SharesOwnedFollowing,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return handlePostgreSQLError(err, fmt.Sprintf("failed to insert transaction %d", i+1))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return handlePostgreSQLError(err, "failed to commit filing")
	}
	return nil
}

// CountTransactions returns the number of stored transactions for a filing
func (r *filingRepository) CountTransactions(ctx context.Context, accessionNumber string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM filing_transaction WHERE accession_number = $1", accessionNumber).Scan(&count)
	if err != nil {
		return 0, handlePostgreSQLError(err, "failed to count transactions")
	}
	return count, nil
}
