package repository

import (
	"context"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// FilingRepository defines operations for ownership filings
type FilingRepository interface {
	// Exists reports whether a filing with the accession number is stored
	Exists(ctx context.Context, accessionNumber string) (bool, error)

	// InsertWithTransactions stores the filing and all of its transactions, or nothing
	InsertWithTransactions(ctx context.Context, filing *model.Filing) error

	// CountTransactions returns the number of stored transactions for a filing
	CountTransactions(ctx context.Context, accessionNumber string) (int, error)
}
