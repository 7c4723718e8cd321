package edgar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/pipeline"
	"github.com/Taichi-iskw/ingest/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "ingest-test admin@example.com"

const form4XML = `<?xml version="1.0"?>
<ownershipDocument>
  <schemaVersion>X0508</schemaVersion>
  <documentType>4</documentType>
  <issuer>
    <issuerCik>0000320193</issuerCik>
    <issuerName>Apple Inc.</issuerName>
    <issuerTradingSymbol>AAPL</issuerTradingSymbol>
  </issuer>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerCik>0001111111</rptOwnerCik>
      <rptOwnerName>Doe Jane</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isDirector>0</isDirector>
      <isOfficer>1</isOfficer>
      <isTenPercentOwner>false</isTenPercentOwner>
      <officerTitle>CFO</officerTitle>
    </reportingOwnerRelationship>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <securityTitle><value>Common Stock</value></securityTitle>
      <transactionDate><value>2025-01-10</value></transactionDate>
      <transactionCoding>
        <transactionFormType>4</transactionFormType>
        <transactionCode>S</transactionCode>
      </transactionCoding>
      <transactionAmounts>
        <transactionShares><value>1000</value></transactionShares>
        <transactionPricePerShare><value>12.50</value></transactionPricePerShare>
        <transactionAcquiredDisposedCode><value>D</value></transactionAcquiredDisposedCode>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value>5000</value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
  <derivativeTable>
    <derivativeTransaction>
      <securityTitle><value>Stock Option</value></securityTitle>
      <transactionDate><value>2025-01-10-05:00</value></transactionDate>
      <transactionCoding>
        <transactionCode>M</transactionCode>
      </transactionCoding>
      <transactionAmounts>
        <transactionShares><value>200</value></transactionShares>
        <transactionPricePerShare><footnoteId id="F1"/></transactionPricePerShare>
        <transactionAcquiredDisposedCode><value>D</value></transactionAcquiredDisposedCode>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value>0</value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
    </derivativeTransaction>
  </derivativeTable>
</ownershipDocument>`

type feedRow struct {
	accession string
	ownerCIK  string
	updated   string
}

func atomFeed(rows []feedRow) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings</title>
<updated>2025-01-12T18:00:00-05:00</updated>
`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<entry>
<title>4 - Doe Jane (%s) (Reporting)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/%s-index.htm"/>
<summary type="html">Filed: 2025-01-12</summary>
<updated>%s</updated>
<category scheme="https://www.sec.gov/" label="form type" term="4"/>
<id>urn:tag:sec.gov,2008:accession-number=%s</id>
</entry>
`, r.ownerCIK, r.accession, r.updated, r.accession)
	}
	b.WriteString("</feed>")
	return b.String()
}

func submissionText(xmlName string) string {
	return "<SEC-DOCUMENT>submission.txt : 20250112\n<DOCUMENT>\n<TYPE>4\n<SEQUENCE>1\n<FILENAME>" +
		xmlName + "\n<DESCRIPTION>FORM 4\n<TEXT>\n...\n</TEXT>\n</DOCUMENT>\n"
}

func newTestSource(t *testing.T, baseURL string, exists ExistsFunc) *FilingSource {
	t.Helper()
	src, err := NewFilingSource(Options{
		HTTP: httpclient.Options{
			BaseURL:    baseURL,
			UserAgent:  testUserAgent,
			MaxRetries: 1,
		},
		PageSize: 2,
		Exists:   exists,
	})
	require.NoError(t, err)
	return src
}

func TestFilingSource_Collect(t *testing.T) {
	pages := map[string][]feedRow{
		"0": {
			{accession: "0001234567-25-000001", ownerCIK: "0001111111", updated: "2025-01-12T16:30:05-05:00"},
			{accession: "0001234567-25-000002", ownerCIK: "0001111111", updated: "2025-01-12T10:00:00-05:00"},
		},
		"2": {
			{accession: "0001234567-25-000003", ownerCIK: "0002222222", updated: "2025-01-11T09:00:00-05:00"},
			{accession: "0001234567-25-000004", ownerCIK: "0002222222", updated: "2025-01-09T15:00:00-05:00"},
		},
	}

	var feedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/cgi-bin/browse-edgar":
			feedCalls.Add(1)
			q := r.URL.Query()
			assert.Equal(t, "getcurrent", q.Get("action"))
			assert.Equal(t, "4", q.Get("type"))
			assert.Equal(t, "2", q.Get("count"))
			_, _ = fmt.Fprint(w, atomFeed(pages[q.Get("start")]))
		case "/Archives/edgar/data/1111111/000123456725000001/0001234567-25-000001.txt":
			_, _ = fmt.Fprint(w, submissionText("wk-form4_1736717405.xml"))
		case "/Archives/edgar/data/1111111/000123456725000001/wk-form4_1736717405.xml":
			_, _ = fmt.Fprint(w, form4XML)
		case "/Archives/edgar/data/2222222/000123456725000003/0001234567-25-000003.txt":
			_, _ = fmt.Fprint(w, submissionText("form4.pdf"))
		default:
			t.Errorf("unexpected request %s", r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	exists := func(ctx context.Context, accession string) (bool, error) {
		return accession == "0001234567-25-000002", nil
	}
	src := newTestSource(t, server.URL, exists)

	params := FetchParams{DaysBack: 1, Now: time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)}
	filings, stats, err := pipeline.Collect(context.Background(), src, params, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), feedCalls.Load(), "scan stops after the page holding a stale entry")
	assert.Equal(t, 1, src.Skipped())
	require.Len(t, filings, 1)
	assert.Equal(t, "0001234567-25-000001", filings[0].AccessionNumber)
	assert.Equal(t, "0001111111", filings[0].CIK)
	assert.Equal(t, "4", filings[0].Form)
	assert.Len(t, filings[0].Transactions, 2)

	assert.Equal(t, 2, stats.ItemsFetched)
	assert.Equal(t, 1, stats.ItemsValidated)
	assert.Equal(t, 1, stats.ItemsFailed)
	assert.Equal(t, 1, stats.ErrorsByType[session.KindParseError])
	assert.Equal(t, 5, stats.TotalRequests)
	assert.Equal(t, 5, stats.SuccessfulRequests)
}

func TestFilingSource_FetchFeedUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := newTestSource(t, server.URL, nil)
	_, stats, err := pipeline.Collect(context.Background(), src, FetchParams{DaysBack: 1}, nil)
	require.Error(t, err)
	assert.Equal(t, "http_503", httpclient.FailureKind(err))
	assert.Equal(t, 1, stats.FailedRequests)
	assert.NotNil(t, stats.End)
}

func TestFilingSource_FetchExistsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/browse-edgar":
			_, _ = fmt.Fprint(w, atomFeed([]feedRow{
				{accession: "0001234567-25-000001", ownerCIK: "0001111111", updated: "2025-01-12T16:30:05-05:00"},
			}))
		case "/Archives/edgar/data/1111111/000123456725000001/0001234567-25-000001.txt":
			_, _ = fmt.Fprint(w, submissionText("form4.xml"))
		case "/Archives/edgar/data/1111111/000123456725000001/form4.xml":
			_, _ = fmt.Fprint(w, form4XML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	exists := func(ctx context.Context, accession string) (bool, error) {
		return false, apperrors.New(apperrors.CodePersistence, "check filing exists")
	}
	src := newTestSource(t, server.URL, exists)

	params := FetchParams{DaysBack: 1, Now: time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)}
	filings, stats, err := pipeline.Collect(context.Background(), src, params, nil)
	require.NoError(t, err)

	assert.Zero(t, src.Skipped())
	require.Len(t, filings, 1)
	assert.Equal(t, "0001234567-25-000001", filings[0].AccessionNumber)
	assert.Equal(t, 1, stats.ItemsValidated)
}

func TestFilingSource_FetchDocumentUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		missing string
	}{
		{name: "submission text", missing: "/Archives/edgar/data/1111111/000123456725000001/0001234567-25-000001.txt"},
		{name: "ownership document", missing: "/Archives/edgar/data/1111111/000123456725000001/form4.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case tt.missing:
					w.WriteHeader(http.StatusNotFound)
				case "/cgi-bin/browse-edgar":
					_, _ = fmt.Fprint(w, atomFeed([]feedRow{
						{accession: "0001234567-25-000001", ownerCIK: "0001111111", updated: "2025-01-12T16:30:05-05:00"},
					}))
				case "/Archives/edgar/data/1111111/000123456725000001/0001234567-25-000001.txt":
					_, _ = fmt.Fprint(w, submissionText("form4.xml"))
				default:
					t.Errorf("unexpected request %s", r.URL.String())
					w.WriteHeader(http.StatusInternalServerError)
				}
			}))
			defer server.Close()

			src := newTestSource(t, server.URL, nil)
			params := FetchParams{DaysBack: 1, Now: time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)}
			filings, stats, err := pipeline.Collect(context.Background(), src, params, nil)
			require.NoError(t, err)

			assert.Empty(t, filings)
			assert.Equal(t, 1, stats.ItemsFetched)
			assert.Equal(t, 1, stats.ItemsFailed)
			assert.Equal(t, 1, stats.ErrorsByType[session.KindDocumentUnavailable])

			var rec *session.ErrorRecord
			for i := range stats.Errors {
				if stats.Errors[i].Type == session.KindDocumentUnavailable {
					rec = &stats.Errors[i]
				}
			}
			require.NotNil(t, rec)
			assert.Equal(t, "0001234567-25-000001", rec.Context["accession_number"])
			assert.Equal(t, "http_404", rec.Context["failure_kind"])
		})
	}
}

func TestFilingSource_Parse(t *testing.T) {
	src := newTestSource(t, "http://127.0.0.1", nil)
	entry := FeedEntry{
		Title:           "4 - Doe Jane (0001111111) (Reporting)",
		CIK:             "0001111111",
		AccessionNumber: "0001234567-25-000001",
		Form:            "4",
		Updated:         time.Date(2025, 1, 12, 21, 30, 5, 0, time.UTC),
	}

	t.Run("ownership document", func(t *testing.T) {
		f, err := src.Parse(RawFiling{Entry: entry, XML: []byte(form4XML)})
		require.NoError(t, err)
		require.NotNil(t, f)

		assert.Equal(t, "0000320193", f.IssuerCIK)
		assert.Equal(t, "Apple Inc.", f.IssuerName)
		assert.Equal(t, "AAPL", f.IssuerTicker)
		assert.Equal(t, "0001111111", f.OwnerCIK)
		assert.Equal(t, "Doe Jane", f.OwnerName)
		assert.False(t, f.IsDirector)
		assert.True(t, f.IsOfficer)
		assert.False(t, f.IsTenPercentOwner)
		assert.Equal(t, "CFO", f.OfficerTitle)
		assert.Equal(t, entry.Updated, f.FilingDate)

		require.Len(t, f.Transactions, 2)
		nd := f.Transactions[0]
		assert.Equal(t, 1, nd.Sequence)
		assert.Equal(t, model.TransactionNonDerivative, nd.Type)
		assert.Equal(t, "Common Stock", nd.SecurityTitle)
		require.NotNil(t, nd.TransactionDate)
		assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), *nd.TransactionDate)
		assert.Equal(t, "S", nd.Code)
		assert.Equal(t, 1000.0, *nd.Shares)
		assert.Equal(t, 12.5, *nd.PricePerShare)
		assert.Equal(t, "D", nd.AcquiredDisposed)
		assert.Equal(t, 5000.0, *nd.SharesOwnedFollowing)

		d := f.Transactions[1]
		assert.Equal(t, 2, d.Sequence)
		assert.Equal(t, model.TransactionDerivative, d.Type)
		require.NotNil(t, d.TransactionDate)
		assert.Equal(t, "M", d.Code)
		assert.Nil(t, d.PricePerShare)
		assert.Equal(t, 0.0, *d.SharesOwnedFollowing)

		assert.True(t, src.Validate(f))
	})

	t.Run("malformed document is absent", func(t *testing.T) {
		src.Tracker().Start()
		f, err := src.Parse(RawFiling{Entry: entry, XML: []byte("<ownershipDocument><issuer>")})
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, 1, src.Tracker().Stats().ErrorsByType[session.KindParseError])
	})

	t.Run("missing document is absent", func(t *testing.T) {
		f, err := src.Parse(RawFiling{Entry: entry})
		assert.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestFilingSource_Validate(t *testing.T) {
	src := newTestSource(t, "http://127.0.0.1", nil)
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filing *model.Filing
		want   bool
	}{
		{
			name:   "no transactions",
			filing: &model.Filing{AccessionNumber: "a", IssuerCIK: "1"},
			want:   true,
		},
		{
			name:   "missing accession",
			filing: &model.Filing{IssuerCIK: "1"},
			want:   false,
		},
		{
			name:   "missing issuer",
			filing: &model.Filing{AccessionNumber: "a"},
			want:   false,
		},
		{
			name: "transaction without date",
			filing: &model.Filing{AccessionNumber: "a", IssuerCIK: "1",
				Transactions: []model.Transaction{{Code: "S"}}},
			want: false,
		},
		{
			name: "transaction without code",
			filing: &model.Filing{AccessionNumber: "a", IssuerCIK: "1",
				Transactions: []model.Transaction{{TransactionDate: &day}}},
			want: false,
		},
		{
			name: "unknown acquired disposed code",
			filing: &model.Filing{AccessionNumber: "a", IssuerCIK: "1",
				Transactions: []model.Transaction{{TransactionDate: &day, Code: "P", AcquiredDisposed: "X"}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, src.Validate(tt.filing))
		})
	}
}

func TestFilingSource_LookupCIK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/company_tickers.json", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},`+
			`"1":{"cik_str":789019,"ticker":"MSFT","title":"MICROSOFT CORP"}}`)
	}))
	defer server.Close()

	src := newTestSource(t, server.URL, nil)

	tests := []struct {
		name     string
		ticker   string
		want     string
		wantCode string
	}{
		{name: "exact", ticker: "AAPL", want: "0000320193"},
		{name: "case insensitive", ticker: "msft", want: "0000789019"},
		{name: "unknown", ticker: "ZZZZ", wantCode: apperrors.CodeNotFound},
		{name: "empty", ticker: " ", wantCode: apperrors.CodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.LookupCIK(context.Background(), tt.ticker)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFilingSource_RequiresContact(t *testing.T) {
	_, err := NewFilingSource(Options{HTTP: httpclient.Options{UserAgent: "ingest/1.0"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfiguration, apperrors.CodeOf(err))
}

func TestCIKFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"4 - Doe Jane (0001111111) (Reporting)", "0001111111"},
		{"4 - APPLE INC (0000320193) (Issuer)", "0000320193"},
		{"4 - no identifier", ""},
		{"4 - unclosed (123", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cikFromTitle(tt.title), tt.title)
	}
}

func TestXMLFilename(t *testing.T) {
	assert.Equal(t, "wk-form4.xml", xmlFilename(submissionText("wk-form4.xml")))
	assert.Equal(t, "doc4.xml", xmlFilename("<FILENAME>cover.htm\n<FILENAME>doc4.xml\r\n"))
	assert.Empty(t, xmlFilename(submissionText("form4.htm")))
	assert.Empty(t, xmlFilename("no documents"))
}

func TestCutoffDay(t *testing.T) {
	now := time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), cutoffDay(now, 1))
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), cutoffDay(now, 7))
}
