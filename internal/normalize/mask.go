package normalize

import "unicode"

const maskPrefix = "XXXX-XXXX-XXXX-"

// MaskAccountNumber keeps only the last four alphanumeric characters of an
// identifier visible. Separators and length are not preserved. Identifiers
// shorter than four characters are masked entirely and tooShort is true.
// Masking an already-masked value returns it unchanged.
func MaskAccountNumber(s string) (masked string, tooShort bool) {
	var kept []rune
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) < 4 {
		return maskPrefix + "XXXX", true
	}
	return maskPrefix + string(kept[len(kept)-4:]), false
}
