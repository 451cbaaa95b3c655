package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses noisy whitespace. Line breaks are kept; runs of blank
// lines collapse to one.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// commonWords appear in virtually every bank statement page.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "withdrawal",
	"deposit", "opening", "closing", "transfer", "number", "page", "period",
}

// IsReadableText reports whether an embedded text layer is real text rather
// than empty output or glyph garbage from a scanned page.
func IsReadableText(s string) bool {
	if len(strings.TrimSpace(s)) <= 50 {
		return false
	}

	total, readable := 0, 0
	for _, r := range s {
		total++
		if r < unicode.MaxASCII && (unicode.IsPrint(r) || unicode.IsSpace(r)) {
			readable++
			continue
		}
		switch r {
		case '₹', '£', '€', '¥':
			readable++
		}
	}
	if float64(readable)/float64(total) <= 0.6 {
		return false
	}

	lower := strings.ToLower(s)
	for _, w := range commonWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
