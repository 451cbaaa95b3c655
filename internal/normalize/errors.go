package normalize

import "fmt"

// FieldCoercionWarning reports a field that could not be converted to its
// canonical form. The original value is kept in the record.
type FieldCoercionWarning struct {
	// Index is the transaction position, or -1 for header and summary fields.
	Index  int
	Field  string
	Value  string
	Reason string
}

func (w *FieldCoercionWarning) Error() string {
	if w.Index >= 0 {
		return fmt.Sprintf("transaction %d: %s %q %s", w.Index, w.Field, w.Value, w.Reason)
	}
	return fmt.Sprintf("%s %q %s", w.Field, w.Value, w.Reason)
}

// ConsistencyWarning reports summary totals that do not reconcile. Values
// are left untouched.
type ConsistencyWarning struct {
	Opening   float64
	Credits   float64
	Debits    float64
	Closing   float64
	Residual  float64
	Tolerance float64
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf(
		"summary does not reconcile: opening %.2f + credits %.2f - debits %.2f != closing %.2f (residual %.2f, tolerance %.2f)",
		w.Opening, w.Credits, w.Debits, w.Closing, w.Residual, w.Tolerance,
	)
}
