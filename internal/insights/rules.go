package insights

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dvloznov/statement-parser/internal/domain"
)

// Salary credits must agree within this fraction to count as recurring.
const salaryTolerance = 0.05

// Rules derives insights without any network access. The result is never
// empty and holds at most MaxInsights entries.
func Rules(rec domain.NormalizedRecord, tolerance float64) []string {
	p := message.NewPrinter(language.English)
	money := func(v float64) string {
		if c := rec.AccountInfo.Currency; c != nil && *c != "" {
			return p.Sprintf("%s %.2f", *c, v)
		}
		return p.Sprintf("%.2f", v)
	}

	var out []string
	txs := rec.Transactions

	var credits, debits float64
	var largestDebit, largestCredit *domain.Transaction
	atmCount, upiCount := 0, 0
	var atmTotal float64
	for i := range txs {
		tx := &txs[i]
		desc := strings.ToUpper(tx.Description)
		if strings.Contains(desc, "UPI") {
			upiCount++
		}
		if tx.Amount == nil {
			continue
		}
		amt := *tx.Amount
		switch {
		case amt > 0:
			credits += amt
			if largestCredit == nil || amt > *largestCredit.Amount {
				largestCredit = tx
			}
		case amt < 0:
			debits += -amt
			if largestDebit == nil || amt < *largestDebit.Amount {
				largestDebit = tx
			}
			if strings.Contains(desc, "ATM") {
				atmCount++
				atmTotal += -amt
			}
		}
	}

	if credits != 0 || debits != 0 {
		net := credits - debits
		switch {
		case net > 0:
			out = append(out, p.Sprintf("Net cash flow was positive: %s (credits %s, debits %s).", money(net), money(credits), money(debits)))
		case net < 0:
			out = append(out, p.Sprintf("Net cash flow was negative: %s (credits %s, debits %s).", money(net), money(credits), money(debits)))
		default:
			out = append(out, p.Sprintf("Credits and debits balanced out at %s each.", money(credits)))
		}
	}
	if largestDebit != nil {
		out = append(out, p.Sprintf("Largest debit: %s on %s (%s).", money(-*largestDebit.Amount), largestDebit.Date, describe(largestDebit)))
	}
	if largestCredit != nil {
		out = append(out, p.Sprintf("Largest credit: %s on %s (%s).", money(*largestCredit.Amount), largestCredit.Date, describe(largestCredit)))
	}
	if s, ok := salaryPattern(txs); ok {
		out = append(out, p.Sprintf("Possible salary: about %s credited on day %d of the month across %d months.", money(s.amount), s.day, s.months))
	}
	if atmCount > 0 {
		out = append(out, p.Sprintf("%d ATM withdrawal(s) totalling %s.", atmCount, money(atmTotal)))
	}
	if upiCount > 0 {
		out = append(out, p.Sprintf("%d UPI transaction(s) in this statement.", upiCount))
	}
	if avg, n, ok := averageBalance(rec); ok {
		if n == 0 {
			out = append(out, p.Sprintf("Average daily balance: %s.", money(avg)))
		} else {
			out = append(out, p.Sprintf("Approximate average balance: %s (from %d running balances).", money(avg), n))
		}
	}
	if r, ok := residual(rec.SummaryValues); ok && math.Abs(r) > tolerance {
		out = append(out, p.Sprintf("Summary totals do not reconcile: off by %s.", money(r)))
	}

	if len(out) == 0 {
		return []string{NoInsights}
	}
	return capped(out)
}

func describe(tx *domain.Transaction) string {
	if tx.Description == "" {
		return "no description"
	}
	return tx.Description
}

type salary struct {
	amount float64
	day    int
	months int
}

// salaryPattern looks for a credit of similar size arriving on the same
// day of the month in at least two distinct months.
func salaryPattern(txs []domain.Transaction) (salary, bool) {
	type credit struct {
		month  string
		day    int
		amount float64
	}
	var credits []credit
	for _, tx := range txs {
		if tx.Amount == nil || *tx.Amount <= 0 || tx.HasFlag(domain.FlagDateUnparsed) || len(tx.Date) != 10 {
			continue
		}
		day := int(tx.Date[8]-'0')*10 + int(tx.Date[9]-'0')
		credits = append(credits, credit{month: tx.Date[:7], day: day, amount: *tx.Amount})
	}
	// Largest first, so the reported salary is the most significant match.
	sort.SliceStable(credits, func(i, j int) bool { return credits[i].amount > credits[j].amount })

	var best salary
	for i, c := range credits {
		months := map[string]bool{c.month: true}
		for j, o := range credits {
			if i == j || o.day != c.day {
				continue
			}
			if math.Abs(o.amount-c.amount) <= salaryTolerance*c.amount {
				months[o.month] = true
			}
		}
		if len(months) >= 2 && len(months) > best.months {
			best = salary{amount: c.amount, day: c.day, months: len(months)}
		}
	}
	return best, best.months >= 2
}

// averageBalance prefers the stated average daily balance and otherwise
// averages the running balances. n is the number of balances averaged, 0
// when the stated value was used.
func averageBalance(rec domain.NormalizedRecord) (avg float64, n int, ok bool) {
	if v := rec.SummaryValues.AverageDailyBalance; v != nil {
		return *v, 0, true
	}
	var sum float64
	for _, tx := range rec.Transactions {
		if tx.Balance != nil {
			sum += *tx.Balance
			n++
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return sum / float64(n), n, true
}

func residual(s domain.SummaryValues) (float64, bool) {
	if s.OpeningBalance == nil || s.ClosingBalance == nil || s.TotalCredits == nil || s.TotalDebits == nil {
		return 0, false
	}
	r := *s.OpeningBalance + *s.TotalCredits - *s.TotalDebits - *s.ClosingBalance
	return math.Round(r*100) / 100, true
}
