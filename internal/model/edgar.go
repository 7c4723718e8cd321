package model

import "time"

// Transaction types reported on Form 4
const (
	TransactionNonDerivative = "non-derivative"
	TransactionDerivative    = "derivative"
)

// Filing is an SEC ownership filing (Form 4) keyed by accession number
type Filing struct {
	AccessionNumber   string        `json:"accession_number" db:"accession_number"`
	CIK               string        `json:"cik" db:"cik"`
	Title             string        `json:"title" db:"title"`
	Form              string        `json:"form" db:"form"`
	FilingDate        time.Time     `json:"filing_date" db:"filing_date"`
	IssuerCIK         string        `json:"issuer_cik" db:"issuer_cik"`
	IssuerName        string        `json:"issuer_name" db:"issuer_name"`
	IssuerTicker      string        `json:"issuer_ticker" db:"issuer_ticker"`
	OwnerCIK          string        `json:"owner_cik" db:"owner_cik"`
	OwnerName         string        `json:"owner_name" db:"owner_name"`
	IsDirector        bool          `json:"is_director" db:"is_director"`
	IsOfficer         bool          `json:"is_officer" db:"is_officer"`
	IsTenPercentOwner bool          `json:"is_ten_percent_owner" db:"is_ten_percent_owner"`
	OfficerTitle      string        `json:"officer_title" db:"officer_title"`
	Transactions      []Transaction `json:"transactions"`
}

// Transaction is one row of a filing's transaction tables, in document order
type Transaction struct {
	Sequence             int        `json:"sequence" db:"sequence"`
	Type                 string     `json:"transaction_type" db:"transaction_type"`
	SecurityTitle        string     `json:"security_title" db:"security_title"`
	TransactionDate      *time.Time `json:"transaction_date,omitempty" db:"transaction_date"`
	Code                 string     `json:"transaction_code" db:"transaction_code"`
	Shares               *float64   `json:"shares,omitempty" db:"shares"`
	PricePerShare        *float64   `json:"price_per_share,omitempty" db:"price_per_share"`
	AcquiredDisposed     string     `json:"acquired_disposed" db:"acquired_disposed"`
	SharesOwnedFollowing *float64   `json:"shares_owned_following,omitempty" db:"shares_owned_following"`
}
