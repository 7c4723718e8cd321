package edgar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/metrics"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/pipeline"
	"github.com/Taichi-iskw/ingest/internal/repository"
	"github.com/Taichi-iskw/ingest/internal/session"
	edgarsource "github.com/Taichi-iskw/ingest/internal/source/edgar"
	"go.uber.org/zap"
)

// FilingSource is the Form 4 source as used by the service
type FilingSource interface {
	pipeline.Source[edgarsource.FetchParams, edgarsource.RawFiling, model.Filing]
	Skipped() int
}

// FailedAccession names a filing that could not be stored and why
type FailedAccession struct {
	AccessionNumber string `json:"accession"`
	Reason          string `json:"reason"`
}

// BatchStats summarizes one filing collection run
type BatchStats struct {
	TotalFilings      int               `json:"total_filings"`
	Successful        int               `json:"successful"`
	Failed            int               `json:"failed"`
	Skipped           int               `json:"skipped"`
	TotalTransactions int               `json:"total_transactions"`
	FailedAccessions  []FailedAccession `json:"failed_accessions"`
	Session           session.Stats     `json:"session"`
}

// Service stores Form 4 filings collected from EDGAR
type Service struct {
	source  FilingSource
	filings repository.FilingRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a new Service
func NewService(source FilingSource, filings repository.FilingRepository, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, filings: filings, metrics: m, logger: logger}
}

// CollectFilings runs one session over the last daysBack days and stores every
// validated filing that is not stored yet. Each filing is inserted atomically.
func (s *Service) CollectFilings(ctx context.Context, daysBack int) (*BatchStats, error) {
	filings, stats, err := pipeline.Collect(ctx, s.source, edgarsource.FetchParams{DaysBack: daysBack}, s.metrics)
	batch := &BatchStats{
		Skipped:          s.source.Skipped(),
		FailedAccessions: []FailedAccession{},
		Session:          stats,
	}
	if err != nil {
		return batch, err
	}

	batch.TotalFilings = stats.ItemsFetched + batch.Skipped
	batch.Failed = stats.ItemsFailed
	reported := make(map[string]bool)
	for _, rec := range stats.Errors {
		acc := rec.Context["accession_number"]
		if acc == "" && rec.Type == session.KindValidationFailure {
			// raw filings render as "<accession> <title> ..."
			if fields := strings.Fields(rec.Context["raw_item"]); len(fields) > 0 {
				acc = fields[0]
			}
		}
		if acc != "" && !reported[acc] {
			reported[acc] = true
			batch.FailedAccessions = append(batch.FailedAccessions, FailedAccession{
				AccessionNumber: acc,
				Reason:          fmt.Sprintf("%s: %s", rec.Type, rec.Message),
			})
		}
	}

	for _, filing := range filings {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		exists, err := s.filings.Exists(ctx, filing.AccessionNumber)
		if err != nil {
			s.storeFailed(batch, filing, err)
			continue
		}
		if exists {
			batch.Skipped++
			continue
		}

		if err := s.filings.InsertWithTransactions(ctx, filing); err != nil {
			if errors.Is(err, errors.CodeConflict) {
				// stored concurrently since the existence check
				batch.Skipped++
				continue
			}
			s.storeFailed(batch, filing, err)
			continue
		}
		batch.Successful++
		batch.TotalTransactions += len(filing.Transactions)
	}

	s.logger.Info("Filing collection finished",
		zap.Int("total_filings", batch.TotalFilings),
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed),
		zap.Int("skipped", batch.Skipped),
		zap.Int("total_transactions", batch.TotalTransactions))
	return batch, nil
}

// storeFailed counts a filing the store rejected and keeps the run going
func (s *Service) storeFailed(batch *BatchStats, filing *model.Filing, err error) {
	s.logger.Error("Failed to store filing",
		zap.String("accession_number", filing.AccessionNumber),
		zap.String("error_type", session.KindPersistenceError),
		zap.Error(err))
	batch.Failed++
	batch.FailedAccessions = append(batch.FailedAccessions, FailedAccession{
		AccessionNumber: filing.AccessionNumber,
		Reason:          fmt.Sprintf("%s: %v", session.KindPersistenceError, err),
	})
}

// companyDirectory is implemented by sources that can look companies up
type companyDirectory interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	SearchFilings(ctx context.Context, cik, form string, from, to time.Time) ([]edgarsource.FilingSummary, error)
}

// SearchResult lists the filings of one company
type SearchResult struct {
	CIK     string                      `json:"cik"`
	Form    string                      `json:"form,omitempty"`
	Filings []edgarsource.FilingSummary `json:"filings"`
}

func (s *Service) directory() (companyDirectory, error) {
	dir, ok := s.source.(companyDirectory)
	if !ok {
		return nil, errors.New(errors.CodeConfiguration, "source does not support company lookup")
	}
	return dir, nil
}

// LookupCIK resolves a ticker through the source when it supports it
func (s *Service) LookupCIK(ctx context.Context, ticker string) (string, error) {
	dir, err := s.directory()
	if err != nil {
		return "", err
	}
	return dir.LookupCIK(ctx, ticker)
}

// SearchFilings lists the recent filings of a company given by CIK or ticker
func (s *Service) SearchFilings(ctx context.Context, company, form string, from, to time.Time) (*SearchResult, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errors.New(errors.CodeInvalidArg, "search range starts after it ends")
	}
	dir, err := s.directory()
	if err != nil {
		return nil, err
	}

	cik, err := edgarsource.NormalizeCIK(company)
	if err != nil {
		if cik, err = dir.LookupCIK(ctx, company); err != nil {
			return nil, err
		}
	}

	filings, err := dir.SearchFilings(ctx, cik, form, from, to)
	if err != nil {
		return nil, err
	}
	return &SearchResult{CIK: cik, Form: form, Filings: filings}, nil
}
