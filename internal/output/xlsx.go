package output

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-parser/internal/domain"
)

const (
	summarySheet      = "Summary"
	transactionsSheet = "Transactions"
)

// Workbook renders an artifact as an XLSX workbook with a Summary and a
// Transactions sheet.
func Workbook(a domain.Artifact) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}

	writeSummary(f, a)
	writeTransactions(f, a.Fields.Transactions)

	idx, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, a domain.Artifact) {
	info, sv, q := a.Fields.AccountInfo, a.Fields.SummaryValues, a.Quality
	rows := [][2]any{
		{"Bank name", text(info.BankName)},
		{"Account holder name", text(info.HolderName)},
		{"Account number", text(info.AccountNumber)},
		{"Statement period", text(info.StatementPeriod)},
		{"Account type", text(info.AccountType)},
		{"Currency", text(info.Currency)},
		{"Opening balance", number(sv.OpeningBalance)},
		{"Closing balance", number(sv.ClosingBalance)},
		{"Total credits", number(sv.TotalCredits)},
		{"Total debits", number(sv.TotalDebits)},
		{"Average daily balance", number(sv.AverageDailyBalance)},
		{"Extraction path", q.ExtractionPath},
		{"Used remote model", q.UsedRemoteModel},
		{"OCR confidence", number(q.OCRConfidence)},
		{"Reconciliation residual", number(q.ReconciliationResidual)},
		{"Missing sections", strings.Join(q.MissingSections, ", ")},
		{"Duplicate entries", q.DuplicateEntries},
	}

	row := 1
	for _, r := range rows {
		setRow(f, summarySheet, row, r[0], r[1])
		row++
	}
	row++
	setRow(f, summarySheet, row, "Insights")
	row++
	for _, insight := range a.Insights {
		setRow(f, summarySheet, row, "", insight)
		row++
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 26)
	_ = f.SetColWidth(summarySheet, "B", "B", 80)
}

func writeTransactions(f *excelize.File, txs []domain.Transaction) {
	setRow(f, transactionsSheet, 1, "Date", "Description", "Amount", "Balance", "Category", "Flags")
	for i, tx := range txs {
		amount := number(tx.Amount)
		if tx.Amount == nil && tx.RawAmount != "" {
			amount = tx.RawAmount
		}
		setRow(f, transactionsSheet, i+2,
			tx.Date, tx.Description, amount, number(tx.Balance), text(tx.Category), strings.Join(tx.Flags, ", "))
	}

	_ = f.SetColWidth(transactionsSheet, "A", "A", 12)
	_ = f.SetColWidth(transactionsSheet, "B", "B", 48)
	_ = f.SetColWidth(transactionsSheet, "C", "D", 14)
	_ = f.SetColWidth(transactionsSheet, "E", "F", 22)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func text(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func number(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
