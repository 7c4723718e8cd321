package edgar

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// ownershipDocument is the subset of the Form 4 XML schema that is stored
type ownershipDocument struct {
	XMLName         xml.Name           `xml:"ownershipDocument"`
	IssuerCIK       string             `xml:"issuer>issuerCik"`
	IssuerName      string             `xml:"issuer>issuerName"`
	IssuerTicker    string             `xml:"issuer>issuerTradingSymbol"`
	ReportingOwners []reportingOwner   `xml:"reportingOwner"`
	NonDerivative   []ownershipRowData `xml:"nonDerivativeTable>nonDerivativeTransaction"`
	Derivative      []ownershipRowData `xml:"derivativeTable>derivativeTransaction"`
}

type reportingOwner struct {
	CIK               string `xml:"reportingOwnerId>rptOwnerCik"`
	Name              string `xml:"reportingOwnerId>rptOwnerName"`
	IsDirector        string `xml:"reportingOwnerRelationship>isDirector"`
	IsOfficer         string `xml:"reportingOwnerRelationship>isOfficer"`
	IsTenPercentOwner string `xml:"reportingOwnerRelationship>isTenPercentOwner"`
	OfficerTitle      string `xml:"reportingOwnerRelationship>officerTitle"`
}

type ownershipRowData struct {
	SecurityTitle        string `xml:"securityTitle>value"`
	TransactionDate      string `xml:"transactionDate>value"`
	Code                 string `xml:"transactionCoding>transactionCode"`
	Shares               string `xml:"transactionAmounts>transactionShares>value"`
	PricePerShare        string `xml:"transactionAmounts>transactionPricePerShare>value"`
	AcquiredDisposed     string `xml:"transactionAmounts>transactionAcquiredDisposedCode>value"`
	SharesOwnedFollowing string `xml:"postTransactionAmounts>sharesOwnedFollowingTransaction>value"`
}

func decodeOwnershipDocument(data []byte) (*ownershipDocument, error) {
	var doc ownershipDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *ownershipDocument) toFiling(entry FeedEntry) *model.Filing {
	f := &model.Filing{
		AccessionNumber: entry.AccessionNumber,
		CIK:             entry.CIK,
		Title:           entry.Title,
		Form:            entry.Form,
		FilingDate:      entry.Updated,
		IssuerCIK:       strings.TrimSpace(d.IssuerCIK),
		IssuerName:      strings.TrimSpace(d.IssuerName),
		IssuerTicker:    strings.TrimSpace(d.IssuerTicker),
	}
	if len(d.ReportingOwners) > 0 {
		owner := d.ReportingOwners[0]
		f.OwnerCIK = strings.TrimSpace(owner.CIK)
		f.OwnerName = strings.TrimSpace(owner.Name)
		f.IsDirector = parseFlag(owner.IsDirector)
		f.IsOfficer = parseFlag(owner.IsOfficer)
		f.IsTenPercentOwner = parseFlag(owner.IsTenPercentOwner)
		f.OfficerTitle = strings.TrimSpace(owner.OfficerTitle)
	}

	seq := 0
	for _, rows := range []struct {
		kind string
		data []ownershipRowData
	}{
		{model.TransactionNonDerivative, d.NonDerivative},
		{model.TransactionDerivative, d.Derivative},
	} {
		for _, row := range rows.data {
			seq++
			f.Transactions = append(f.Transactions, row.toTransaction(seq, rows.kind))
		}
	}
	return f
}

func (r ownershipRowData) toTransaction(seq int, kind string) model.Transaction {
	return model.Transaction{
		Sequence:             seq,
		Type:                 kind,
		SecurityTitle:        strings.TrimSpace(r.SecurityTitle),
		TransactionDate:      parseDate(r.TransactionDate),
		Code:                 strings.TrimSpace(r.Code),
		Shares:               parseNumber(r.Shares),
		PricePerShare:        parseNumber(r.PricePerShare),
		AcquiredDisposed:     strings.TrimSpace(r.AcquiredDisposed),
		SharesOwnedFollowing: parseNumber(r.SharesOwnedFollowing),
	}
}

// parseFlag accepts the "1"/"0" and "true"/"false" spellings used by filers
func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

// parseDate reads the leading YYYY-MM-DD; some filers append a zone offset
func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if len(v) < len(time.DateOnly) {
		return nil
	}
	t, err := time.Parse(time.DateOnly, v[:len(time.DateOnly)])
	if err != nil {
		return nil
	}
	return &t
}

func parseNumber(v string) *float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &n
}
