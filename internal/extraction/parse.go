package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/llm"
)

// ParseStatus tags the outcome of ParseResponse.
type ParseStatus int

const (
	ParseOK ParseStatus = iota
	// ParseSchemaError means the text held no usable JSON or the JSON did
	// not match the expected shape.
	ParseSchemaError
	// ParseEmpty means the JSON was valid but carried none of the
	// top-level sections.
	ParseEmpty
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParseSchemaError:
		return "schema_error"
	case ParseEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ParseResult is the tagged result of parsing a model response. Record is
// meaningful only when Status is ParseOK; Err explains any other status.
type ParseResult struct {
	Status ParseStatus
	Record domain.ExtractedRecord
	Err    error
}

var errNoJSON = errors.New("no JSON object or array found")

// ParseResponse interprets the raw text of an extraction response.
func ParseResponse(text string) ParseResult {
	clean := llm.CleanJSON(text)
	if clean == "" {
		return ParseResult{Status: ParseSchemaError, Err: errNoJSON}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return ParseResult{Status: ParseSchemaError, Err: fmt.Errorf("unmarshal JSON: %w", err)}
	}

	doc, err := canonicalDocument(parsed)
	if err != nil {
		return ParseResult{Status: ParseSchemaError, Err: err}
	}
	if err := validate(doc); err != nil {
		return ParseResult{Status: ParseSchemaError, Err: err}
	}

	rec := toRecord(doc)
	if len(rec.Sections) == 0 {
		return ParseResult{Status: ParseEmpty, Err: errors.New("response has no account_info, summary_values or transactions")}
	}
	return ParseResult{Status: ParseOK, Record: rec}
}

// Canonical key aliases, looked up by canonKey of the source key.
var (
	sectionAliases = map[string]string{
		"accountinfo":        domain.SectionAccountInfo,
		"accountinformation": domain.SectionAccountInfo,
		"accountdetails":     domain.SectionAccountInfo,
		"account":            domain.SectionAccountInfo,
		"summaryvalues":      domain.SectionSummaryValues,
		"summary":            domain.SectionSummaryValues,
		"statementsummary":   domain.SectionSummaryValues,
		"balances":           domain.SectionSummaryValues,
		"transactions":       domain.SectionTransactions,
		"transactionlist":    domain.SectionTransactions,
		"entries":            domain.SectionTransactions,
	}
	accountAliases = map[string]string{
		"bankname":          "bank_name",
		"bank":              "bank_name",
		"accountholdername": "account_holder_name",
		"accountholder":     "account_holder_name",
		"holdername":        "account_holder_name",
		"customername":      "account_holder_name",
		"name":              "account_holder_name",
		"accountnumber":     "account_number",
		"accountno":         "account_number",
		"accno":             "account_number",
		"acno":              "account_number",
		"statementperiod":   "statement_period",
		"statementmonth":    "statement_period",
		"period":            "statement_period",
		"month":             "statement_period",
		"accounttype":       "account_type",
		"type":              "account_type",
		"currency":          "currency",
	}
	summaryAliases = map[string]string{
		"openingbalance":      "opening_balance",
		"opening":             "opening_balance",
		"closingbalance":      "closing_balance",
		"closing":             "closing_balance",
		"totalcredits":        "total_credits",
		"credits":             "total_credits",
		"totaldeposits":       "total_credits",
		"totaldebits":         "total_debits",
		"debits":              "total_debits",
		"totalwithdrawals":    "total_debits",
		"averagedailybalance": "average_daily_balance",
		"averagebalance":      "average_daily_balance",
		"avgbalance":          "average_daily_balance",
	}
	transactionAliases = map[string]string{
		"date":            "date",
		"transactiondate": "date",
		"txndate":         "date",
		"valuedate":       "date",
		"datestr":         "date",
		"description":     "description",
		"narration":       "description",
		"details":         "description",
		"particulars":     "description",
		"remarks":         "description",
		"amount":          "amount",
		"debit":           "debit",
		"withdrawal":      "debit",
		"withdrawals":     "debit",
		"paidout":         "debit",
		"debitamount":     "debit",
		"credit":          "credit",
		"deposit":         "credit",
		"deposits":        "credit",
		"paidin":          "credit",
		"creditamount":    "credit",
		"type":            "direction",
		"direction":       "direction",
		"drcr":            "direction",
		"crdr":            "direction",
		"transactiontype": "direction",
		"balance":         "balance",
		"runningbalance":  "balance",
		"balanceafter":    "balance",
		"closingbalance":  "balance",
		"category":        "category",
	}
	wrapperKeys = []string{"fields", "data", "result", "statement"}
)

// canonKey folds case and drops everything but letters and digits, so
// "Account Info", "account_info" and "accountInfo" compare equal.
func canonKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// canonicalDocument rewrites a decoded response into the canonical
// three-section shape. Unknown keys are dropped.
func canonicalDocument(v any) (map[string]any, error) {
	switch val := v.(type) {
	case []any:
		if !hasObject(val) {
			return nil, errors.New("top-level array holds no transaction objects")
		}
		return map[string]any{domain.SectionTransactions: canonicalList(val, transactionAliases)}, nil
	case map[string]any:
		doc := canonicalObject(val, sectionAliases)
		if len(doc) == 0 {
			if inner, ok := unwrap(val); ok {
				return canonicalDocument(inner)
			}
		}
		if ai, ok := doc[domain.SectionAccountInfo].(map[string]any); ok {
			doc[domain.SectionAccountInfo] = canonicalObject(ai, accountAliases)
		}
		if sv, ok := doc[domain.SectionSummaryValues].(map[string]any); ok {
			doc[domain.SectionSummaryValues] = canonicalObject(sv, summaryAliases)
		}
		if txs, ok := doc[domain.SectionTransactions].([]any); ok {
			doc[domain.SectionTransactions] = canonicalList(txs, transactionAliases)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("top-level JSON is %T, want object or array", v)
	}
}

func hasObject(items []any) bool {
	for _, item := range items {
		if _, ok := item.(map[string]any); ok {
			return true
		}
	}
	return false
}

func unwrap(obj map[string]any) (any, bool) {
	for k, v := range obj {
		for _, w := range wrapperKeys {
			if canonKey(k) != w {
				continue
			}
			switch v.(type) {
			case map[string]any, []any:
				return v, true
			}
		}
	}
	return nil, false
}

// canonicalObject keeps the aliased keys of obj. When two source keys map
// to the same canonical key, the first non-null one wins.
func canonicalObject(obj map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		name, ok := aliases[canonKey(k)]
		if !ok {
			continue
		}
		if existing, seen := out[name]; seen && existing != nil {
			continue
		}
		out[name] = v
	}
	return out
}

func canonicalList(items []any, aliases map[string]string) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, canonicalObject(obj, aliases))
			continue
		}
		out = append(out, item)
	}
	return out
}

// toRecord converts a validated canonical document. A section counts as
// present only when it is non-null.
func toRecord(doc map[string]any) domain.ExtractedRecord {
	var rec domain.ExtractedRecord

	if ai, ok := doc[domain.SectionAccountInfo].(map[string]any); ok {
		rec.MarkSection(domain.SectionAccountInfo)
		rec.AccountInfo = domain.AccountInfo{
			BankName:        optionalString(ai, "bank_name"),
			HolderName:      optionalString(ai, "account_holder_name"),
			AccountNumber:   optionalString(ai, "account_number"),
			StatementPeriod: optionalString(ai, "statement_period"),
			AccountType:     optionalString(ai, "account_type"),
			Currency:        optionalString(ai, "currency"),
		}
	}

	if sv, ok := doc[domain.SectionSummaryValues].(map[string]any); ok {
		rec.MarkSection(domain.SectionSummaryValues)
		rec.Summary = domain.RawSummary{
			OpeningBalance:      sv["opening_balance"],
			ClosingBalance:      sv["closing_balance"],
			TotalCredits:        sv["total_credits"],
			TotalDebits:         sv["total_debits"],
			AverageDailyBalance: sv["average_daily_balance"],
		}
	}

	if txs, ok := doc[domain.SectionTransactions].([]any); ok {
		rec.MarkSection(domain.SectionTransactions)
		for _, item := range txs {
			t, ok := item.(map[string]any)
			if !ok {
				// Kept as an empty row; the normalizer flags what is missing.
				rec.Transactions = append(rec.Transactions, domain.RawTransaction{Description: textValue(item)})
				continue
			}
			rec.Transactions = append(rec.Transactions, domain.RawTransaction{
				Date:        stringField(t, "date"),
				Description: stringField(t, "description"),
				Amount:      t["amount"],
				Debit:       t["debit"],
				Credit:      t["credit"],
				Direction:   stringField(t, "direction"),
				Balance:     t["balance"],
				Category:    optionalString(t, "category"),
			})
		}
	}
	return rec
}

// optionalString returns the value at key as a string pointer, or nil when
// the key is missing, null or blank. Numbers are rendered as printed.
func optionalString(m map[string]any, key string) *string {
	s := stringField(m, key)
	if s == "" {
		return nil
	}
	return &s
}

func stringField(m map[string]any, key string) string {
	return textValue(m[key])
}

func textValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// preview shortens text for inclusion in a quality note.
func preview(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
