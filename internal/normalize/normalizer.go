// Package normalize turns a provisional ExtractedRecord into a validated,
// masked and reconciled NormalizedRecord. Every step is total: problems are
// recorded as warnings and flags, never returned as errors.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-parser/internal/domain"
)

// Options controls normalization.
type Options struct {
	// Tolerance is the largest reconciliation residual, in currency units,
	// that is still considered consistent.
	Tolerance float64
	// DayFirst resolves ambiguous numeric dates such as 03/04/2025 as
	// 3 April rather than March 4.
	DayFirst bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Tolerance: 1.0, DayFirst: true}
}

// Result is the output of Normalize.
type Result struct {
	Record   domain.NormalizedRecord
	Quality  domain.QualityFragment
	Warnings []error
}

type normalizer struct {
	opts     Options
	quality  domain.QualityFragment
	warnings []error
}

func (n *normalizer) warn(err error) {
	n.warnings = append(n.warnings, err)
	n.quality.Note(err.Error())
}

// Normalize validates and reconciles rec. Transactions keep their source
// order and are never dropped.
func Normalize(rec domain.ExtractedRecord, opts Options) Result {
	n := &normalizer{opts: opts}

	out := domain.NormalizedRecord{
		AccountInfo:  n.accountInfo(rec.AccountInfo),
		Transactions: make([]domain.Transaction, 0, len(rec.Transactions)),
	}

	amounts := make([]*decimal.Decimal, len(rec.Transactions))
	for i, raw := range rec.Transactions {
		tx, amt := n.transaction(i, raw)
		out.Transactions = append(out.Transactions, tx)
		amounts[i] = amt
	}

	out.SummaryValues = n.summary(rec.Summary, out.Transactions, amounts)
	n.markDuplicates(out.Transactions, amounts)

	if !rec.HasSection(domain.SectionAccountInfo) || out.AccountInfo.IsEmpty() {
		n.quality.MissingSections = append(n.quality.MissingSections, domain.SectionAccountInfo)
	}
	if !rec.HasSection(domain.SectionSummaryValues) {
		n.quality.MissingSections = append(n.quality.MissingSections, domain.SectionSummaryValues)
	}
	if len(out.Transactions) == 0 {
		n.quality.MissingSections = append(n.quality.MissingSections, domain.SectionTransactions)
	}
	if out.SummaryValues.OpeningBalance == nil {
		n.quality.MissingSections = append(n.quality.MissingSections, "opening_balance")
	}
	if out.SummaryValues.ClosingBalance == nil {
		n.quality.MissingSections = append(n.quality.MissingSections, "closing_balance")
	}
	if out.SummaryValues.TotalCredits == nil {
		n.quality.MissingSections = append(n.quality.MissingSections, "total_credits")
	}
	if out.SummaryValues.TotalDebits == nil {
		n.quality.MissingSections = append(n.quality.MissingSections, "total_debits")
	}

	return Result{Record: out, Quality: n.quality, Warnings: n.warnings}
}

func (n *normalizer) accountInfo(in domain.AccountInfo) domain.AccountInfo {
	out := domain.AccountInfo{
		BankName:        cleanText(in.BankName),
		HolderName:      cleanText(in.HolderName),
		StatementPeriod: cleanText(in.StatementPeriod),
		AccountType:     cleanText(in.AccountType),
		Currency:        cleanText(in.Currency),
	}
	if acct := cleanText(in.AccountNumber); acct != nil {
		masked, tooShort := MaskAccountNumber(*acct)
		if tooShort {
			n.quality.Note("account number too short to mask partially; masked entirely")
		}
		out.AccountNumber = &masked
	}
	return out
}

func (n *normalizer) transaction(i int, raw domain.RawTransaction) (domain.Transaction, *decimal.Decimal) {
	tx := domain.Transaction{
		Description: strings.Join(strings.Fields(raw.Description), " "),
		Category:    cleanText(raw.Category),
	}

	date, ok := NormalizeDate(raw.Date, n.opts.DayFirst)
	tx.Date = date
	if !ok {
		tx.AddFlag(domain.FlagDateUnparsed)
		reason := "could not be parsed as a date"
		if date == "" {
			reason = "is missing"
		}
		n.warn(&FieldCoercionWarning{Index: i, Field: "date", Value: date, Reason: reason})
	}

	if tx.Description == "" {
		tx.AddFlag(domain.FlagMissingDescription)
	}

	var amount *decimal.Decimal
	d, rawText, err := resolveAmount(raw)
	if err != nil {
		tx.AddFlag(domain.FlagAmountInvalid)
		tx.RawAmount = rawText
		n.warn(&FieldCoercionWarning{Index: i, Field: "amount", Value: rawText, Reason: err.Error() + "; excluded from totals"})
	} else {
		d = d.Round(2)
		amount = &d
		tx.Amount = toFloat(d)
	}
	if raw.SignGuessed {
		tx.AddFlag(domain.FlagDirectionInferred)
	}

	if raw.Balance != nil {
		bal, err := ParseAmount(raw.Balance)
		switch {
		case err == nil:
			tx.Balance = toFloat(bal)
		case !errors.Is(err, errMissing):
			tx.AddFlag(domain.FlagBalanceInvalid)
			n.warn(&FieldCoercionWarning{Index: i, Field: "balance", Value: rawString(raw.Balance), Reason: err.Error()})
		}
	}

	return tx, amount
}

func (n *normalizer) summaryValue(field string, v any) *decimal.Decimal {
	d, err := ParseAmount(v)
	if err != nil {
		if !errors.Is(err, errMissing) {
			n.warn(&FieldCoercionWarning{Index: -1, Field: field, Value: rawString(v), Reason: err.Error()})
		}
		return nil
	}
	d = d.Round(2)
	return &d
}

func (n *normalizer) summary(raw domain.RawSummary, txs []domain.Transaction, amounts []*decimal.Decimal) domain.SummaryValues {
	opening := n.summaryValue("opening_balance", raw.OpeningBalance)
	closing := n.summaryValue("closing_balance", raw.ClosingBalance)
	credits := n.summaryValue("total_credits", raw.TotalCredits)
	debits := n.summaryValue("total_debits", raw.TotalDebits)
	average := n.summaryValue("average_daily_balance", raw.AverageDailyBalance)

	// Debit totals are magnitudes regardless of how the source signed them.
	if debits != nil {
		abs := debits.Abs()
		debits = &abs
	}

	txCredits, txDebits, valid := decimal.Zero, decimal.Zero, 0
	for _, a := range amounts {
		if a == nil {
			continue
		}
		valid++
		if a.IsNegative() {
			txDebits = txDebits.Add(a.Abs())
		} else {
			txCredits = txCredits.Add(*a)
		}
	}

	tol := decimal.NewFromFloat(n.opts.Tolerance)
	if valid > 0 {
		if credits == nil {
			credits = &txCredits
			n.quality.Note("total_credits inferred from transaction sum")
		} else if credits.Sub(txCredits).Abs().GreaterThan(tol) {
			n.quality.Note(fmt.Sprintf("stated total_credits %s differ from transaction credits %s", credits.StringFixed(2), txCredits.StringFixed(2)))
		}
		if debits == nil {
			debits = &txDebits
			n.quality.Note("total_debits inferred from transaction sum")
		} else if debits.Sub(txDebits).Abs().GreaterThan(tol) {
			n.quality.Note(fmt.Sprintf("stated total_debits %s differ from transaction debits %s", debits.StringFixed(2), txDebits.StringFixed(2)))
		}
	}

	n.inferByIdentity(&opening, &closing, &credits, &debits)

	if opening == nil || closing == nil {
		first, last := balanceEnds(txs, amounts)
		if opening == nil && first != nil {
			opening = first
			n.quality.Note("opening_balance inferred from first running balance")
		}
		if closing == nil && last != nil {
			closing = last
			n.quality.Note("closing_balance inferred from last running balance")
		}
		n.inferByIdentity(&opening, &closing, &credits, &debits)
	}

	if opening != nil && closing != nil && credits != nil && debits != nil {
		residual := opening.Add(*credits).Sub(*debits).Sub(*closing).Round(2)
		n.quality.ReconciliationResidual = toFloat(residual)
		if residual.Abs().GreaterThan(tol) {
			n.warn(&ConsistencyWarning{
				Opening:   opening.InexactFloat64(),
				Credits:   credits.InexactFloat64(),
				Debits:    debits.InexactFloat64(),
				Closing:   closing.InexactFloat64(),
				Residual:  residual.InexactFloat64(),
				Tolerance: n.opts.Tolerance,
			})
		}
	}

	return domain.SummaryValues{
		OpeningBalance:      floatOrNil(opening),
		ClosingBalance:      floatOrNil(closing),
		TotalCredits:        floatOrNil(credits),
		TotalDebits:         floatOrNil(debits),
		AverageDailyBalance: floatOrNil(average),
	}
}

// inferByIdentity derives the single missing value of
// opening + credits - debits = closing.
func (n *normalizer) inferByIdentity(opening, closing, credits, debits **decimal.Decimal) {
	missing := 0
	for _, v := range []*decimal.Decimal{*opening, *closing, *credits, *debits} {
		if v == nil {
			missing++
		}
	}
	if missing != 1 {
		return
	}

	var d decimal.Decimal
	switch {
	case *closing == nil:
		d = (*opening).Add(**credits).Sub(**debits)
		*closing = &d
		n.quality.Note("closing_balance inferred from opening balance and totals")
	case *opening == nil:
		d = (*closing).Sub(**credits).Add(**debits)
		*opening = &d
		n.quality.Note("opening_balance inferred from closing balance and totals")
	case *credits == nil:
		d = (*closing).Sub(**opening).Add(**debits)
		*credits = &d
		n.quality.Note("total_credits inferred from balances and total_debits")
	case *debits == nil:
		d = (*opening).Add(**credits).Sub(**closing)
		*debits = &d
		n.quality.Note("total_debits inferred from balances and total_credits")
	}
}

// balanceEnds returns the balance before the first transaction and after
// the last one, when running balances allow it.
func balanceEnds(txs []domain.Transaction, amounts []*decimal.Decimal) (first, last *decimal.Decimal) {
	for i, tx := range txs {
		if tx.Balance != nil && amounts[i] != nil {
			d := decimal.NewFromFloat(*tx.Balance).Sub(*amounts[i]).Round(2)
			first = &d
			break
		}
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Balance != nil {
			d := decimal.NewFromFloat(*txs[i].Balance).Round(2)
			last = &d
			break
		}
	}
	return first, last
}

func (n *normalizer) markDuplicates(txs []domain.Transaction, amounts []*decimal.Decimal) {
	groups := map[string][]int{}
	var order []string
	for i, tx := range txs {
		if tx.Date == "" && tx.Description == "" && amounts[i] == nil {
			continue
		}
		key := duplicateKey(tx, amounts[i])
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		idx := groups[key]
		if len(idx) < 2 {
			continue
		}
		n.quality.DuplicateEntries = true
		parts := make([]string, len(idx))
		for j, i := range idx {
			txs[i].AddFlag(domain.FlagDuplicate)
			parts[j] = fmt.Sprint(i)
		}
		n.quality.Note("possible duplicate transactions at indices " + strings.Join(parts, ", "))
	}
}

func duplicateKey(tx domain.Transaction, amount *decimal.Decimal) string {
	amt := "raw:" + tx.RawAmount
	if amount != nil {
		amt = amount.StringFixed(2)
	}
	desc := strings.ToLower(strings.Join(strings.Fields(tx.Description), " "))
	return tx.Date + "\x00" + amt + "\x00" + desc
}

func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Join(strings.Fields(*s), " ")
	if v == "" {
		return nil
	}
	return &v
}

func floatOrNil(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	return toFloat(*d)
}
