package domain

import "strings"

// Top-level section names, also used in QualityMetadata.MissingSections.
const (
	SectionAccountInfo   = "account_info"
	SectionSummaryValues = "summary_values"
	SectionTransactions  = "transactions"
)

// AccountInfo is the statement header. Every field is optional.
type AccountInfo struct {
	BankName        *string `json:"bank_name"`
	HolderName      *string `json:"account_holder_name"`
	AccountNumber   *string `json:"account_number"`
	StatementPeriod *string `json:"statement_period"`
	AccountType     *string `json:"account_type"`
	Currency        *string `json:"currency,omitempty"`
}

// IsEmpty reports whether no header field carries text.
func (a AccountInfo) IsEmpty() bool {
	for _, v := range []*string{a.BankName, a.HolderName, a.AccountNumber, a.StatementPeriod, a.AccountType, a.Currency} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return false
		}
	}
	return true
}

// RawSummary holds summary totals as received.
type RawSummary struct {
	OpeningBalance      any
	ClosingBalance      any
	TotalCredits        any
	TotalDebits         any
	AverageDailyBalance any
}

// ExtractedRecord is the provisional output of an extraction path. Any field
// may be missing or malformed; the normalizer decides what survives.
type ExtractedRecord struct {
	AccountInfo  AccountInfo
	Summary      RawSummary
	Transactions []RawTransaction
	// Sections lists the top-level sections present in the source.
	Sections map[string]bool
}

// MarkSection records that a top-level section was present.
func (r *ExtractedRecord) MarkSection(name string) {
	if r.Sections == nil {
		r.Sections = make(map[string]bool, 3)
	}
	r.Sections[name] = true
}

// HasSection reports whether the source contained the named section.
func (r ExtractedRecord) HasSection(name string) bool {
	return r.Sections[name]
}

// SummaryValues holds reconciled totals in the statement currency.
type SummaryValues struct {
	OpeningBalance      *float64 `json:"opening_balance"`
	ClosingBalance      *float64 `json:"closing_balance"`
	TotalCredits        *float64 `json:"total_credits"`
	TotalDebits         *float64 `json:"total_debits"`
	AverageDailyBalance *float64 `json:"average_daily_balance"`
}

// NormalizedRecord is the validated, masked and reconciled statement.
type NormalizedRecord struct {
	AccountInfo   AccountInfo   `json:"account_info"`
	SummaryValues SummaryValues `json:"summary_values"`
	Transactions  []Transaction `json:"transactions"`
}
