package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/domain"
)

func strPtr(s string) *string { return &s }

func record(summary domain.RawSummary, txs ...domain.RawTransaction) domain.ExtractedRecord {
	rec := domain.ExtractedRecord{
		AccountInfo:  domain.AccountInfo{BankName: strPtr("Test Bank"), AccountNumber: strPtr("1234567890")},
		Summary:      summary,
		Transactions: txs,
	}
	rec.MarkSection(domain.SectionAccountInfo)
	rec.MarkSection(domain.SectionSummaryValues)
	rec.MarkSection(domain.SectionTransactions)
	return rec
}

func hasWarning[T error](warnings []error) bool {
	for _, w := range warnings {
		var target T
		if errors.As(w, &target) {
			return true
		}
	}
	return false
}

func TestNormalize_ReconciledSummaryPasses(t *testing.T) {
	res := Normalize(record(domain.RawSummary{
		OpeningBalance: 100.0, TotalCredits: 50.0, TotalDebits: 30.0, ClosingBalance: 120.0,
	}), DefaultOptions())

	assert.False(t, hasWarning[*ConsistencyWarning](res.Warnings))
	require.NotNil(t, res.Quality.ReconciliationResidual)
	assert.Zero(t, *res.Quality.ReconciliationResidual)
}

func TestNormalize_UnreconciledSummaryFlagged(t *testing.T) {
	res := Normalize(record(domain.RawSummary{
		OpeningBalance: 100.0, TotalCredits: 50.0, TotalDebits: 30.0, ClosingBalance: 125.0,
	}), DefaultOptions())

	assert.True(t, hasWarning[*ConsistencyWarning](res.Warnings))
	assert.Equal(t, 125.0, *res.Record.SummaryValues.ClosingBalance, "values are not altered")
	assert.InDelta(t, -5.0, *res.Quality.ReconciliationResidual, 1e-9)
}

func TestNormalize_WithinToleranceNotFlagged(t *testing.T) {
	res := Normalize(record(domain.RawSummary{
		OpeningBalance: "100", TotalCredits: "50", TotalDebits: "30", ClosingBalance: "120.80",
	}), DefaultOptions())

	assert.False(t, hasWarning[*ConsistencyWarning](res.Warnings))
}

func TestNormalize_InfersClosingFromTransactions(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{OpeningBalance: 100.0},
		domain.RawTransaction{Date: "2025-10-01", Description: "Deposit", Amount: 50.0},
		domain.RawTransaction{Date: "2025-10-02", Description: "Groceries", Amount: -30.0},
	), DefaultOptions())

	s := res.Record.SummaryValues
	require.NotNil(t, s.ClosingBalance)
	assert.Equal(t, 120.0, *s.ClosingBalance)
	assert.Equal(t, 50.0, *s.TotalCredits)
	assert.Equal(t, 30.0, *s.TotalDebits)
	assert.Contains(t, res.Quality.Notes, "closing_balance inferred from opening balance and totals")
	assert.NotContains(t, res.Quality.MissingSections, "closing_balance")
}

func TestNormalize_InfersOpeningAlgebraically(t *testing.T) {
	res := Normalize(record(domain.RawSummary{
		ClosingBalance: 120.0, TotalCredits: 50.0, TotalDebits: 30.0,
	}), DefaultOptions())

	require.NotNil(t, res.Record.SummaryValues.OpeningBalance)
	assert.Equal(t, 100.0, *res.Record.SummaryValues.OpeningBalance)
}

func TestNormalize_InfersFromRunningBalances(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{},
		domain.RawTransaction{Date: "2025-10-01", Description: "Salary", Amount: 1000.0, Balance: 1500.0},
		domain.RawTransaction{Date: "2025-10-03", Description: "Rent", Amount: -700.0, Balance: 800.0},
	), DefaultOptions())

	s := res.Record.SummaryValues
	require.NotNil(t, s.OpeningBalance)
	require.NotNil(t, s.ClosingBalance)
	assert.Equal(t, 500.0, *s.OpeningBalance)
	assert.Equal(t, 800.0, *s.ClosingBalance)
	assert.Zero(t, *res.Quality.ReconciliationResidual)
}

func TestNormalize_UnresolvableSummaryReported(t *testing.T) {
	res := Normalize(record(domain.RawSummary{TotalCredits: 10.0}), DefaultOptions())

	assert.Contains(t, res.Quality.MissingSections, "opening_balance")
	assert.Contains(t, res.Quality.MissingSections, "closing_balance")
	assert.Nil(t, res.Quality.ReconciliationResidual)
}

func TestNormalize_UnresolvableTotalsReported(t *testing.T) {
	rec := record(domain.RawSummary{OpeningBalance: 100.0, ClosingBalance: 120.0})
	rec.Transactions = nil

	res := Normalize(rec, DefaultOptions())

	s := res.Record.SummaryValues
	assert.Nil(t, s.TotalCredits)
	assert.Nil(t, s.TotalDebits)
	assert.Contains(t, res.Quality.MissingSections, "total_credits")
	assert.Contains(t, res.Quality.MissingSections, "total_debits")
	assert.NotContains(t, res.Quality.MissingSections, "opening_balance")
	assert.NotContains(t, res.Quality.MissingSections, "closing_balance")
}

func TestNormalize_InvalidAmountKeptAndExcluded(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{OpeningBalance: 0.0},
		domain.RawTransaction{Date: "2025-10-01", Description: "Good", Amount: "40.00"},
		domain.RawTransaction{Date: "2025-10-02", Description: "Bad", Amount: "forty"},
	), DefaultOptions())

	require.Len(t, res.Record.Transactions, 2)
	bad := res.Record.Transactions[1]
	assert.Nil(t, bad.Amount)
	assert.Equal(t, "forty", bad.RawAmount)
	assert.True(t, bad.HasFlag(domain.FlagAmountInvalid))
	assert.Equal(t, 40.0, *res.Record.SummaryValues.TotalCredits)
	assert.True(t, hasWarning[*FieldCoercionWarning](res.Warnings))
}

func TestNormalize_NonNumericAmountFlagged(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{},
		domain.RawTransaction{Date: "2025-10-01", Description: "Good", Amount: 10.0},
		domain.RawTransaction{Date: "2025-10-02", Description: "Odd", Amount: true},
		domain.RawTransaction{},
	), DefaultOptions())

	require.Len(t, res.Record.Transactions, 3)
	odd := res.Record.Transactions[1]
	assert.Nil(t, odd.Amount)
	assert.Equal(t, "true", odd.RawAmount)
	assert.True(t, odd.HasFlag(domain.FlagAmountInvalid))
	empty := res.Record.Transactions[2]
	assert.True(t, empty.HasFlag(domain.FlagDateUnparsed))
	assert.True(t, empty.HasFlag(domain.FlagMissingDescription))
	require.NotNil(t, res.Record.SummaryValues.TotalCredits)
	assert.Equal(t, 10.0, *res.Record.SummaryValues.TotalCredits)
}

func TestNormalize_DateCoercion(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{},
		domain.RawTransaction{Date: "05/10/2025", Description: "A", Amount: 1.0},
		domain.RawTransaction{Date: "sometime", Description: "B", Amount: 2.0},
	), DefaultOptions())

	assert.Equal(t, "2025-10-05", res.Record.Transactions[0].Date)
	assert.Equal(t, "sometime", res.Record.Transactions[1].Date)
	assert.True(t, res.Record.Transactions[1].HasFlag(domain.FlagDateUnparsed))
}

func TestNormalize_DuplicatesFlaggedNotDropped(t *testing.T) {
	dup := domain.RawTransaction{Date: "2025-10-05", Description: "ATM  Withdrawal", Amount: -2000.0}
	res := Normalize(record(
		domain.RawSummary{},
		dup,
		domain.RawTransaction{Date: "2025-10-06", Description: "Coffee", Amount: -3.0},
		domain.RawTransaction{Date: "05/10/2025", Description: "atm withdrawal", Amount: "2,000.00 DR"},
	), DefaultOptions())

	require.Len(t, res.Record.Transactions, 3)
	assert.True(t, res.Quality.DuplicateEntries)
	assert.True(t, res.Record.Transactions[0].HasFlag(domain.FlagDuplicate))
	assert.False(t, res.Record.Transactions[1].HasFlag(domain.FlagDuplicate))
	assert.True(t, res.Record.Transactions[2].HasFlag(domain.FlagDuplicate))
	assert.Contains(t, res.Quality.Notes, "possible duplicate transactions at indices 0, 2")
}

func TestNormalize_DuplicateClearedByAnyFieldChange(t *testing.T) {
	base := domain.RawTransaction{Date: "2025-10-05", Description: "Transfer", Amount: -10.0}
	tests := []struct {
		name   string
		second domain.RawTransaction
		want   bool
	}{
		{"identical", base, true},
		{"different date", domain.RawTransaction{Date: "2025-10-06", Description: "Transfer", Amount: -10.0}, false},
		{"different amount", domain.RawTransaction{Date: "2025-10-05", Description: "Transfer", Amount: -11.0}, false},
		{"different description", domain.RawTransaction{Date: "2025-10-05", Description: "Transfer 2", Amount: -10.0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(record(domain.RawSummary{}, base, tt.second), DefaultOptions())
			assert.Equal(t, tt.want, res.Quality.DuplicateEntries)
		})
	}
}

func TestNormalize_PreservesOrder(t *testing.T) {
	res := Normalize(record(
		domain.RawSummary{},
		domain.RawTransaction{Date: "2025-10-09", Description: "late", Amount: 1.0},
		domain.RawTransaction{Date: "2025-10-01", Description: "early", Amount: 1.0},
	), DefaultOptions())

	assert.Equal(t, "late", res.Record.Transactions[0].Description)
	assert.Equal(t, "early", res.Record.Transactions[1].Description)
}

func TestNormalize_MasksAccountNumber(t *testing.T) {
	rec := record(domain.RawSummary{})
	res := Normalize(rec, DefaultOptions())
	assert.Equal(t, "XXXX-XXXX-XXXX-7890", *res.Record.AccountInfo.AccountNumber)

	rec.AccountInfo.AccountNumber = strPtr("12")
	res = Normalize(rec, DefaultOptions())
	assert.Equal(t, "XXXX-XXXX-XXXX-XXXX", *res.Record.AccountInfo.AccountNumber)
	assert.Contains(t, res.Quality.Notes, "account number too short to mask partially; masked entirely")
}

func TestNormalize_EmptyRecord(t *testing.T) {
	res := Normalize(domain.ExtractedRecord{}, DefaultOptions())

	assert.NotNil(t, res.Record.Transactions)
	assert.Empty(t, res.Record.Transactions)
	assert.Contains(t, res.Quality.MissingSections, domain.SectionAccountInfo)
	assert.Contains(t, res.Quality.MissingSections, domain.SectionSummaryValues)
	assert.Contains(t, res.Quality.MissingSections, domain.SectionTransactions)
}

func TestNormalize_Idempotent(t *testing.T) {
	rec := record(
		domain.RawSummary{OpeningBalance: "₹100", ClosingBalance: "120"},
		domain.RawTransaction{Date: "1/10/2025", Description: "x", Amount: "50 CR"},
		domain.RawTransaction{Date: "2/10/2025", Description: "y", Amount: "30 DR"},
	)
	first := Normalize(rec, DefaultOptions()).Record

	again := record(domain.RawSummary{
		OpeningBalance: *first.SummaryValues.OpeningBalance,
		ClosingBalance: *first.SummaryValues.ClosingBalance,
	})
	again.AccountInfo.AccountNumber = first.AccountInfo.AccountNumber
	for _, tx := range first.Transactions {
		again.Transactions = append(again.Transactions, domain.RawTransaction{Date: tx.Date, Description: tx.Description, Amount: *tx.Amount})
	}
	second := Normalize(again, DefaultOptions()).Record

	assert.Equal(t, first, second)
}
