package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/llm"
)

// MockGenerator is a test double for llm.Generator.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Calls        int
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Calls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", llm.ErrEmptyResponse
}

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func sampleRecord() domain.NormalizedRecord {
	return domain.NormalizedRecord{
		AccountInfo: domain.AccountInfo{BankName: s("HDFC Bank"), Currency: s("INR")},
		SummaryValues: domain.SummaryValues{
			OpeningBalance: f(15000), ClosingBalance: f(36500),
			TotalCredits: f(25000), TotalDebits: f(3500),
		},
		Transactions: []domain.Transaction{
			{Date: "2025-10-01", Description: "Salary credit ACME Corp", Amount: f(25000), Balance: f(40000)},
			{Date: "2025-10-05", Description: "ATM withdrawal MG Road", Amount: f(-2000), Balance: f(38000)},
			{Date: "2025-10-12", Description: "UPI/grocery store/1234", Amount: f(-1500), Balance: f(36500)},
		},
	}
}

func TestRules_Statement(t *testing.T) {
	got := Rules(sampleRecord(), 1.0)

	assert.Equal(t, []string{
		"Net cash flow was positive: INR 21,500.00 (credits INR 25,000.00, debits INR 3,500.00).",
		"Largest debit: INR 2,000.00 on 2025-10-05 (ATM withdrawal MG Road).",
		"Largest credit: INR 25,000.00 on 2025-10-01 (Salary credit ACME Corp).",
		"1 ATM withdrawal(s) totalling INR 2,000.00.",
		"1 UPI transaction(s) in this statement.",
		"Approximate average balance: INR 38,166.67 (from 3 running balances).",
	}, got)
}

func TestRules_Empty(t *testing.T) {
	assert.Equal(t, []string{NoInsights}, Rules(domain.NormalizedRecord{}, 1.0))
}

func TestRules_NegativeFlowAndUnreconciled(t *testing.T) {
	rec := domain.NormalizedRecord{
		SummaryValues: domain.SummaryValues{
			OpeningBalance: f(100), TotalCredits: f(50), TotalDebits: f(30), ClosingBalance: f(125),
			AverageDailyBalance: f(110),
		},
		Transactions: []domain.Transaction{
			{Date: "2025-10-01", Description: "Rent", Amount: f(-80)},
			{Date: "2025-10-02", Description: "Refund", Amount: f(50)},
		},
	}

	got := Rules(rec, 1.0)

	assert.Contains(t, got, "Net cash flow was negative: -30.00 (credits 50.00, debits 80.00).")
	assert.Contains(t, got, "Average daily balance: 110.00.")
	assert.Contains(t, got, "Summary totals do not reconcile: off by -5.00.")
}

func TestRules_SalaryPattern(t *testing.T) {
	rec := domain.NormalizedRecord{Transactions: []domain.Transaction{
		{Date: "2025-08-28", Description: "SALARY AUG", Amount: f(50000)},
		{Date: "2025-09-28", Description: "SALARY SEP", Amount: f(51000)},
		{Date: "2025-10-28", Description: "SALARY OCT", Amount: f(50500)},
		{Date: "2025-10-03", Description: "Cashback", Amount: f(50)},
	}}

	got := Rules(rec, 1.0)

	assert.Contains(t, got, "Possible salary: about 51,000.00 credited on day 28 of the month across 3 months.")
}

func TestRules_NoSalaryWhenAmountsDiffer(t *testing.T) {
	rec := domain.NormalizedRecord{Transactions: []domain.Transaction{
		{Date: "2025-09-28", Amount: f(50000)},
		{Date: "2025-10-28", Amount: f(30000)},
	}}

	for _, line := range Rules(rec, 1.0) {
		assert.NotContains(t, line, "Possible salary")
	}
}

func TestRules_Capped(t *testing.T) {
	rec := sampleRecord()
	rec.SummaryValues.ClosingBalance = f(1)
	rec.Transactions = append(rec.Transactions,
		domain.Transaction{Date: "2025-09-01", Description: "Salary credit ACME Corp", Amount: f(25000)},
	)

	got := Rules(rec, 1.0)

	assert.Len(t, got, MaxInsights)
}

func TestParseInsights(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"object", `{"insights": ["Spending rose", "  Salary arrived  ", ""]}`, []string{"Spending rose", "Salary arrived"}},
		{"fenced object", "```json\n{\"Insights\": [\"One\"]}\n```", []string{"One"}},
		{"bare array", `["A", "B"]`, []string{"A", "B"}},
		{"bullets", "- First point\n• Second point\n\n* Third point", []string{"First point", "Second point", "Third point"}},
		{"numbered", "1. First\n2) Second", []string{"First", "Second"}},
		{"object without insights", `{"summary": "nothing"}`, nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInsights(tt.text))
		})
	}
}

func TestParseInsights_Capped(t *testing.T) {
	items := make([]string, 12)
	for i := range items {
		items[i] = "- insight"
	}
	assert.Len(t, ParseInsights(strings.Join(items, "\n")), MaxInsights)
}

func TestGenerate_Remote(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			assert.Contains(t, req.Prompt, `"transactions"`)
			assert.Empty(t, req.Attachments)
			return `{"insights": ["Healthy savings month", "One ATM withdrawal"]}`, nil
		},
	}

	got, q := New(gen, Options{Tolerance: 1}).Generate(context.Background(), sampleRecord(), true)

	assert.Equal(t, []string{"Healthy savings month", "One ATM withdrawal"}, got)
	assert.Empty(t, q.Notes)
	assert.Equal(t, 1, gen.Calls)
}

func TestGenerate_RemoteFailureFallsBackToRules(t *testing.T) {
	tests := []struct {
		name     string
		generate func(ctx context.Context, req llm.Request) (string, error)
	}{
		{"call error", func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("gemini generate: connection refused")
		}},
		{"no usable insights", func(ctx context.Context, req llm.Request) (string, error) {
			return `{"insights": []}`, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, q := New(&MockGenerator{GenerateFunc: tt.generate}, Options{Tolerance: 1}).Generate(context.Background(), sampleRecord(), true)

			assert.Equal(t, Rules(sampleRecord(), 1), got)
			require.Len(t, q.Notes, 1)
			assert.Contains(t, q.Notes[0], "remote insights failed")
		})
	}
}

func TestGenerate_RemoteNotRequested(t *testing.T) {
	gen := &MockGenerator{}

	got, q := New(gen, Options{Tolerance: 1}).Generate(context.Background(), sampleRecord(), false)

	assert.Zero(t, gen.Calls)
	assert.Empty(t, q.Notes)
	assert.NotEmpty(t, got)
}

func TestRemote_ErrorType(t *testing.T) {
	_, err := New(nil, Options{}).Remote(context.Background(), sampleRecord())

	var rerr *RemoteInsightError
	require.ErrorAs(t, err, &rerr)
}
