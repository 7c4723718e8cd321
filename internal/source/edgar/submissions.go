package edgar

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"go.uber.org/zap"
)

const filingDateLayout = "2006-01-02"

// CompanySubmissions is the company record served by the submissions API.
// Recent filings come as parallel arrays, newest first.
type CompanySubmissions struct {
	CIK       string   `json:"cik"`
	Name      string   `json:"name"`
	Tickers   []string `json:"tickers"`
	Exchanges []string `json:"exchanges"`
	Filings   struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

type RecentFilings struct {
	AccessionNumber       []string `json:"accessionNumber"`
	FilingDate            []string `json:"filingDate"`
	ReportDate            []string `json:"reportDate"`
	Form                  []string `json:"form"`
	PrimaryDocument       []string `json:"primaryDocument"`
	PrimaryDocDescription []string `json:"primaryDocDescription"`
}

// FilingSummary is one row of a company's recent filings
type FilingSummary struct {
	AccessionNumber string `json:"accession_number"`
	FilingDate      string `json:"filing_date"`
	ReportDate      string `json:"report_date,omitempty"`
	Form            string `json:"form"`
	PrimaryDocument string `json:"primary_document,omitempty"`
	Description     string `json:"description,omitempty"`
}

// NormalizeCIK left pads a numeric CIK to 10 digits
func NormalizeCIK(cik string) (string, error) {
	cik = strings.TrimSpace(cik)
	if cik == "" || len(cik) > 10 || strings.Trim(cik, "0123456789") != "" {
		return "", apperrors.New(apperrors.CodeInvalidArg, fmt.Sprintf("invalid CIK %q", cik))
	}
	return strings.Repeat("0", 10-len(cik)) + cik, nil
}

// Submissions fetches the company record and its recent filings
func (s *FilingSource) Submissions(ctx context.Context, cik string) (*CompanySubmissions, error) {
	cik, err := NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}

	var company CompanySubmissions
	target := fmt.Sprintf("%s/submissions/CIK%s.json", s.dataURL, cik)
	if err := s.client.GetJSON(ctx, target, nil, &company); err != nil {
		if httpclient.FailureKind(err) == "http_404" {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, fmt.Sprintf("company with CIK %s not found", cik))
		}
		return nil, err
	}
	return &company, nil
}

// SearchFilings lists a company's recent filings, optionally narrowed to one form
// type and a filing date range. Zero from or to leaves that side open.
func (s *FilingSource) SearchFilings(ctx context.Context, cik, form string, from, to time.Time) ([]FilingSummary, error) {
	company, err := s.Submissions(ctx, cik)
	if err != nil {
		return nil, err
	}
	filings := company.Filings.Recent.Filter(form, from, to)
	s.logger.Debug("Searched company filings",
		zap.String("cik", company.CIK),
		zap.String("form", form),
		zap.Int("matches", len(filings)))
	return filings, nil
}

// Filter returns the rows matching form and the inclusive filing date range
func (r RecentFilings) Filter(form string, from, to time.Time) []FilingSummary {
	var lower, upper string
	if !from.IsZero() {
		lower = from.Format(filingDateLayout)
	}
	if !to.IsZero() {
		upper = to.Format(filingDateLayout)
	}

	filings := []FilingSummary{}
	for i, acc := range r.AccessionNumber {
		row := FilingSummary{
			AccessionNumber: acc,
			FilingDate:      at(r.FilingDate, i),
			ReportDate:      at(r.ReportDate, i),
			Form:            at(r.Form, i),
			PrimaryDocument: at(r.PrimaryDocument, i),
			Description:     at(r.PrimaryDocDescription, i),
		}
		if form != "" && !strings.EqualFold(row.Form, form) {
			continue
		}
		// ISO dates order lexically
		if lower != "" && row.FilingDate < lower {
			continue
		}
		if upper != "" && row.FilingDate > upper {
			continue
		}
		filings = append(filings, row)
	}
	return filings
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
