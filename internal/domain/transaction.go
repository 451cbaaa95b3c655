package domain

// Transaction flags recorded on normalized entries. Flagged entries are kept
// in place; nothing is dropped during normalization.
const (
	FlagDateUnparsed       = "date_unparsed"
	FlagAmountInvalid      = "amount_invalid"
	FlagBalanceInvalid     = "balance_invalid"
	FlagMissingDescription = "missing_description"
	FlagDuplicate          = "duplicate"
	FlagDirectionInferred  = "direction_inferred"
)

// Transaction is one normalized statement line.
type Transaction struct {
	Date        string `json:"date"` // YYYY-MM-DD, or the original text when unparseable
	Description string `json:"description"`
	// Amount is signed: credits positive, debits negative. Nil when the
	// source value could not be coerced; RawAmount then keeps the input.
	Amount    *float64 `json:"amount"`
	RawAmount string   `json:"raw_amount,omitempty"`
	Balance   *float64 `json:"balance"`
	Category  *string  `json:"category"`
	Flags     []string `json:"flags,omitempty"`
}

// HasFlag reports whether the transaction carries flag.
func (t Transaction) HasFlag(flag string) bool {
	for _, f := range t.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag records flag once.
func (t *Transaction) AddFlag(flag string) {
	if !t.HasFlag(flag) {
		t.Flags = append(t.Flags, flag)
	}
}

// RawTransaction is a transaction as received from an extraction path.
// Numeric fields hold whatever the source produced (number, string or nil).
type RawTransaction struct {
	Date        string
	Description string
	Amount      any
	// Debit and Credit are set when the source reports separate columns.
	Debit  any
	Credit any
	// Direction is a free-form tag such as "DR", "credit" or "OUT".
	Direction string
	Balance   any
	Category  *string
	// SignGuessed marks amounts whose direction the source inferred.
	SignGuessed bool
}
