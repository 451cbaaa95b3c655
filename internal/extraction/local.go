package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/normalize"
)

var (
	// A transaction line starts with a date.
	lineDateRe = regexp.MustCompile(`(?i)^\s*(\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}[-\s](?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*[-\s,]+\d{2,4})\b`)
	// Money tokens carry two decimals, which keeps reference numbers out.
	moneyRe = regexp.MustCompile(`(?i)\(?-?(?:[₹$€£]|\brs\.?|\binr)?\s?(?:\d{1,3}(?:,\d{2,3})+|\d+)\.\d{2}\)?(?:\s?(?:cr|dr)\b)?-?`)
	// Fallback for statements printed without decimals.
	trailingIntRe = regexp.MustCompile(`\s(-?\d[\d,]*)\s*$`)

	accountNumberRe = regexp.MustCompile(`(?i)\b(?:account|a/c|ac|acc)\.?\s*(?:no|number|num|#)\.?\s*[:\-]?\s*([0-9Xx*][0-9Xx* \-]{2,}[0-9])`)
	maskedNumberRe  = regexp.MustCompile(`(?i)\b[x*]{4,}[\- ]?\d{3,6}\b`)
	holderRe        = regexp.MustCompile(`(?i)\b(?:account\s*holder(?:\s*name)?|customer\s*name|name)\s*[:\-]\s*([A-Za-z][A-Za-z .']{1,60})`)
	bankRe          = regexp.MustCompile(`\b((?:[A-Z][A-Za-z&.]*\s+){0,3}Bank(?:\s+of(?:\s+[A-Z][A-Za-z]+){1,2})?(?:\s+(?:Ltd|Limited|PLC|plc)\.?)?)`)
	periodRe        = regexp.MustCompile(`(?i)\b(?:statement\s*(?:period|month|for(?:\s+the\s+(?:month|period)\s+of)?)|period)\s*[:\-]?\s*(.{3,60})`)
	fromToRe        = regexp.MustCompile(`(?i)\bfrom\s+(\S+(?:\s\S+){0,2})\s+to\s+(\S+(?:\s\S+){0,2})`)
	accountTypeRe   = regexp.MustCompile(`(?i)\b(savings|current|checking|salary|credit\s+card)\s+(?:account|a/c)\b`)

	openingRe = regexp.MustCompile(`(?i)\b(?:opening\s+bal(?:ance)?|balance\s+(?:b/f|brought\s+forward)|previous\s+balance)\b`)
	closingRe = regexp.MustCompile(`(?i)\b(?:closing\s+bal(?:ance)?|balance\s+(?:c/f|carried\s+forward)|(?:new|ending)\s+balance)\b`)
	creditsRe = regexp.MustCompile(`(?i)\btotal\s+(?:credits?|deposits?|paid\s+in)\b`)
	debitsRe  = regexp.MustCompile(`(?i)\btotal\s+(?:debits?|withdrawals?|paid\s+out)\b`)
	averageRe = regexp.MustCompile(`(?i)\baverage\s+(?:daily\s+|monthly\s+)?balance\b`)
	summaryRe = regexp.MustCompile(`(?i)\(?-?(?:[₹$€£]|\brs\.?|\binr)?\s?\d[\d,]*(?:\.\d{1,2})?\)?(?:\s?(?:cr|dr)\b)?`)

	debitWords  = []string{"withdrawal", "atm", "debit", "purchase", "pos ", "payment", "paid", "transfer to", "bill", "emi", "charges", "fee"}
	creditWords = []string{"salary", "credit", "deposit", "refund", "interest", "received", "transfer from", "cashback", "reversal"}
)

var currencyMarks = []struct{ mark, code string }{
	{"₹", "INR"}, {"INR", "INR"}, {"Rs.", "INR"},
	{"£", "GBP"}, {"GBP", "GBP"},
	{"€", "EUR"}, {"EUR", "EUR"},
	{"$", "USD"}, {"USD", "USD"},
}

// HeuristicExtract pulls what it can from recognized statement text with
// line-oriented patterns. It never fails; unmatched parts are left empty.
func HeuristicExtract(text string) domain.ExtractedRecord {
	var rec domain.ExtractedRecord
	lines := strings.Split(text, "\n")

	rec.AccountInfo = headerFields(text, lines)
	if !rec.AccountInfo.IsEmpty() {
		rec.MarkSection(domain.SectionAccountInfo)
	}

	var summaryFound bool
	var prevBalance *decimal.Decimal
	for _, line := range lines {
		if tx, ok := transactionLine(line, prevBalance); ok {
			rec.Transactions = append(rec.Transactions, tx)
			if tx.Balance != nil {
				if d, err := normalize.ParseAmount(tx.Balance); err == nil {
					prevBalance = &d
				}
			}
			continue
		}
		if summaryLine(line, &rec.Summary) {
			summaryFound = true
			if prevBalance == nil && rec.Summary.OpeningBalance != nil {
				if d, err := normalize.ParseAmount(rec.Summary.OpeningBalance); err == nil {
					prevBalance = &d
				}
			}
		}
	}
	if summaryFound {
		rec.MarkSection(domain.SectionSummaryValues)
	}
	if len(rec.Transactions) > 0 {
		rec.MarkSection(domain.SectionTransactions)
	}
	return rec
}

func headerFields(text string, lines []string) domain.AccountInfo {
	var info domain.AccountInfo

	if m := accountNumberRe.FindStringSubmatch(text); m != nil {
		info.AccountNumber = strPtr(strings.TrimSpace(m[1]))
	} else if m := maskedNumberRe.FindString(text); m != "" {
		info.AccountNumber = strPtr(m)
	}

	for _, line := range lines {
		if info.HolderName == nil {
			if m := holderRe.FindStringSubmatch(line); m != nil {
				if name := cleanName(m[1]); name != "" {
					info.HolderName = &name
				}
			}
		}
		if info.BankName == nil {
			if m := bankRe.FindStringSubmatch(line); m != nil {
				if bank := cleanBank(m[1]); bank != "" {
					info.BankName = &bank
				}
			}
		}
		if info.StatementPeriod == nil {
			if m := fromToRe.FindStringSubmatch(line); m != nil {
				info.StatementPeriod = strPtr(m[1] + " to " + m[2])
			} else if m := periodRe.FindStringSubmatch(line); m != nil {
				info.StatementPeriod = strPtr(strings.TrimSpace(m[1]))
			}
		}
	}

	if m := accountTypeRe.FindStringSubmatch(text); m != nil {
		kind := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
		info.AccountType = strPtr(strings.ToUpper(kind[:1]) + kind[1:])
	}

	for _, c := range currencyMarks {
		if strings.Contains(text, c.mark) {
			info.Currency = strPtr(c.code)
			break
		}
	}
	return info
}

var nameStopWords = map[string]bool{
	"account": true, "acc": true, "no": true, "number": true, "branch": true,
	"bank": true, "address": true, "statement": true, "period": true, "date": true,
}

// cleanName keeps leading words until a label word appears.
func cleanName(s string) string {
	var kept []string
	for _, w := range strings.Fields(s) {
		if nameStopWords[strings.ToLower(strings.Trim(w, ".:"))] {
			break
		}
		kept = append(kept, w)
		if len(kept) == 4 {
			break
		}
	}
	return strings.Join(kept, " ")
}

var bankLeadWords = map[string]bool{"statement": true, "account": true, "your": true, "the": true, "of": true, "welcome": true, "to": true}

func cleanBank(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && bankLeadWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) < 2 {
		return ""
	}
	return strings.Join(words, " ")
}

// transactionLine parses "DATE DESCRIPTION [DEBIT] [CREDIT] [BALANCE]".
// With one amount it is the transaction amount; with two the last is the
// running balance; with three or more the last three are debit, credit and
// balance columns.
func transactionLine(line string, prevBalance *decimal.Decimal) (domain.RawTransaction, bool) {
	loc := lineDateRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return domain.RawTransaction{}, false
	}
	date := line[loc[2]:loc[3]]
	rest := line[loc[1]:]

	var tokens []string
	descEnd := len(rest)
	if idx := moneyRe.FindAllStringIndex(rest, -1); len(idx) > 0 {
		descEnd = idx[0][0]
		for _, i := range idx {
			tokens = append(tokens, strings.TrimSpace(rest[i[0]:i[1]]))
		}
	} else if m := trailingIntRe.FindStringSubmatchIndex(rest); m != nil {
		descEnd = m[2]
		tokens = []string{rest[m[2]:m[3]]}
	}
	if len(tokens) == 0 {
		return domain.RawTransaction{}, false
	}

	tx := domain.RawTransaction{
		Date:        date,
		Description: strings.Join(strings.Fields(rest[:descEnd]), " "),
	}
	switch n := len(tokens); {
	case n >= 3:
		tx.Debit = tokens[n-3]
		tx.Credit = tokens[n-2]
		tx.Balance = tokens[n-1]
		return tx, true
	case n == 2:
		tx.Amount = tokens[0]
		tx.Balance = tokens[1]
	default:
		tx.Amount = tokens[0]
	}

	if hasExplicitSign(tokens[0]) {
		return tx, true
	}
	tx.Direction, tx.SignGuessed = inferDirection(tx, prevBalance)
	return tx, true
}

func hasExplicitSign(token string) bool {
	t := strings.ToLower(strings.TrimSpace(token))
	return strings.HasPrefix(t, "-") || strings.HasPrefix(t, "(") ||
		strings.HasSuffix(t, "-") || strings.HasSuffix(t, "cr") || strings.HasSuffix(t, "dr")
}

// inferDirection decides the sign of an unsigned amount. A running balance
// that moves by exactly the amount is authoritative; otherwise description
// keywords decide and the result is marked as guessed.
func inferDirection(tx domain.RawTransaction, prevBalance *decimal.Decimal) (string, bool) {
	if prevBalance != nil && tx.Balance != nil {
		amount, errA := normalize.ParseAmount(tx.Amount)
		balance, errB := normalize.ParseAmount(tx.Balance)
		if errA == nil && errB == nil {
			tol := decimal.New(1, -2)
			if prevBalance.Add(amount).Sub(balance).Abs().LessThanOrEqual(tol) {
				return "CR", false
			}
			if prevBalance.Sub(amount).Sub(balance).Abs().LessThanOrEqual(tol) {
				return "DR", false
			}
		}
	}

	desc := " " + strings.ToLower(tx.Description) + " "
	for _, w := range creditWords {
		if strings.Contains(desc, w) {
			return "CR", true
		}
	}
	for _, w := range debitWords {
		if strings.Contains(desc, w) {
			return "DR", true
		}
	}
	return "CR", true
}

// summaryLine fills one summary value from a labelled line.
func summaryLine(line string, s *domain.RawSummary) bool {
	labels := []struct {
		re  *regexp.Regexp
		dst *any
	}{
		{openingRe, &s.OpeningBalance},
		{closingRe, &s.ClosingBalance},
		{creditsRe, &s.TotalCredits},
		{debitsRe, &s.TotalDebits},
		{averageRe, &s.AverageDailyBalance},
	}
	found := false
	for _, l := range labels {
		loc := l.re.FindStringIndex(line)
		if loc == nil || *l.dst != nil {
			continue
		}
		// The value is the first amount after the label.
		if v := summaryRe.FindString(line[loc[1]:]); strings.ContainsAny(v, "0123456789") {
			*l.dst = strings.TrimSpace(v)
			found = true
		}
	}
	return found
}

func strPtr(s string) *string { return &s }
