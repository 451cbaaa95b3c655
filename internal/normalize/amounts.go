package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-parser/internal/domain"
)

var (
	errMissing = errors.New("is missing")

	currencyRe   = regexp.MustCompile(`(?i)[₹$€£¥]|INR|USD|EUR|GBP|RS\.?`)
	numberRe     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	debitSuffix  = regexp.MustCompile(`(?i)\s*(?:DR|DEBIT)\.?$`)
	creditSuffix = regexp.MustCompile(`(?i)\s*(?:CR|CREDIT)\.?$`)
)

// ParseAmount coerces a number or numeric string to a decimal. Currency
// symbols and codes, thousands separators and whitespace are stripped.
// Parentheses, a leading or trailing minus, and a trailing DR mark a
// negative value; a trailing CR forces a positive one.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, errMissing
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		return parseAmountString(val.String())
	case decimal.Decimal:
		return val, nil
	case string:
		return parseAmountString(val)
	default:
		return decimal.Zero, fmt.Errorf("has unsupported type %T", v)
	}
}

func parseAmountString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || s == "-" {
		return decimal.Zero, errMissing
	}

	sign := 0
	switch {
	case debitSuffix.MatchString(s):
		sign = -1
		s = debitSuffix.ReplaceAllString(s, "")
	case creditSuffix.MatchString(s):
		sign = 1
		s = creditSuffix.ReplaceAllString(s, "")
	}

	s = currencyRe.ReplaceAllString(s, "")
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "'", "").Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	if !numberRe.MatchString(s) {
		return decimal.Zero, errors.New("is not a number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("is not a number: %w", err)
	}

	switch {
	case sign < 0:
		return d.Abs().Neg(), nil
	case sign > 0:
		return d.Abs(), nil
	case negative:
		return d.Neg(), nil
	}
	return d, nil
}

// directionSign classifies a direction tag: -1 debit, +1 credit, 0 unknown.
func directionSign(tag string) int {
	switch strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(tag, "."))) {
	case "DR", "D", "DEBIT", "OUT", "WITHDRAWAL", "PAID OUT", "-":
		return -1
	case "CR", "C", "CREDIT", "IN", "DEPOSIT", "PAID IN", "+":
		return 1
	}
	return 0
}

// resolveAmount maps the various source shapes onto one signed amount.
// Separate debit and credit columns win over a plain amount; a recognised
// direction tag overrides the sign of the amount.
func resolveAmount(raw domain.RawTransaction) (decimal.Decimal, string, error) {
	if present(raw.Debit) || present(raw.Credit) {
		debit, derr := ParseAmount(raw.Debit)
		credit, cerr := ParseAmount(raw.Credit)
		switch {
		case derr == nil && cerr == nil:
			return credit.Abs().Sub(debit.Abs()), "", nil
		case derr == nil && errors.Is(cerr, errMissing):
			return debit.Abs().Neg(), "", nil
		case cerr == nil && errors.Is(derr, errMissing):
			return credit.Abs(), "", nil
		case derr != nil && !errors.Is(derr, errMissing):
			return decimal.Zero, rawString(raw.Debit), derr
		default:
			return decimal.Zero, rawString(raw.Credit), cerr
		}
	}

	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return decimal.Zero, rawString(raw.Amount), err
	}
	switch directionSign(raw.Direction) {
	case -1:
		return amount.Abs().Neg(), "", nil
	case 1:
		return amount.Abs(), "", nil
	}
	return amount, "", nil
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		s := strings.TrimSpace(val)
		return s != "" && s != "-" && !strings.EqualFold(s, "null")
	}
	return true
}

func rawString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	}
	return fmt.Sprint(v)
}

func toFloat(d decimal.Decimal) *float64 {
	f := d.Round(2).InexactFloat64()
	return &f
}
