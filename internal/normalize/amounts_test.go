package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/domain"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{"float", 1234.5, "1234.5", false},
		{"int", 42, "42", false},
		{"json number", json.Number("-12.75"), "-12.75", false},
		{"plain string", "1234.56", "1234.56", false},
		{"thousands", "1,23,456.00", "123456", false},
		{"rupee", "₹ 2,000.00", "2000", false},
		{"dollar negative", "-$45.10", "-45.1", false},
		{"pound", "£1,000", "1000", false},
		{"rs prefix", "Rs.500", "500", false},
		{"currency code", "INR 750.25", "750.25", false},
		{"parentheses", "(1,200.00)", "-1200", false},
		{"trailing minus", "300.00-", "-300", false},
		{"dr suffix", "2,000.00 DR", "-2000", false},
		{"cr suffix", "2,000.00 Cr", "2000", false},
		{"cr overrides minus", "-50 CR", "50", false},
		{"leading plus", "+15", "15", false},
		{"bare decimal", ".50", "0.5", false},
		{"word", "abc", "", true},
		{"two dots", "1.2.3", "", true},
		{"empty", "", "", true},
		{"nil", nil, "", true},
		{"bool", true, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestResolveAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     domain.RawTransaction
		want    string
		wantErr bool
	}{
		{"signed amount trusted", domain.RawTransaction{Amount: -20.0}, "-20", false},
		{"debit column", domain.RawTransaction{Debit: "500.00"}, "-500", false},
		{"credit column", domain.RawTransaction{Credit: 750.0, Debit: ""}, "750", false},
		{"both columns", domain.RawTransaction{Credit: "100", Debit: "30"}, "70", false},
		{"dr tag", domain.RawTransaction{Amount: 99.0, Direction: "DR"}, "-99", false},
		{"credit tag flips negative", domain.RawTransaction{Amount: -99.0, Direction: "credit"}, "99", false},
		{"unknown tag keeps sign", domain.RawTransaction{Amount: -5.0, Direction: "transfer"}, "-5", false},
		{"invalid debit", domain.RawTransaction{Debit: "n/a"}, "", true},
		{"missing", domain.RawTransaction{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := resolveAmount(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
