package extraction

import "github.com/dvloznov/statement-parser/internal/domain"

// FixtureRecord returns the fixed record used in test mode. Its summary
// reconciles exactly with its transactions.
func FixtureRecord() domain.ExtractedRecord {
	salary, cash, groceries := "Income", "Cash", "Groceries"
	rec := domain.ExtractedRecord{
		AccountInfo: domain.AccountInfo{
			BankName:        strPtr("HDFC Bank"),
			HolderName:      strPtr("Test User"),
			AccountNumber:   strPtr("123456787890"),
			StatementPeriod: strPtr("October 2025"),
			AccountType:     strPtr("Savings"),
			Currency:        strPtr("INR"),
		},
		Summary: domain.RawSummary{
			OpeningBalance: 15000.0,
			ClosingBalance: 36500.0,
			TotalCredits:   25000.0,
			TotalDebits:    3500.0,
		},
		Transactions: []domain.RawTransaction{
			{Date: "2025-10-01", Description: "Salary credit ACME Corp", Amount: 25000.0, Balance: 40000.0, Category: &salary},
			{Date: "2025-10-05", Description: "ATM withdrawal MG Road", Amount: -2000.0, Balance: 38000.0, Category: &cash},
			{Date: "2025-10-12", Description: "UPI/grocery store/1234", Amount: -1500.0, Balance: 36500.0, Category: &groceries},
		},
	}
	rec.MarkSection(domain.SectionAccountInfo)
	rec.MarkSection(domain.SectionSummaryValues)
	rec.MarkSection(domain.SectionTransactions)
	return rec
}
