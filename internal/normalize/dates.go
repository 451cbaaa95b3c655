package normalize

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var isoLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
}

var monthFirstLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"1.2.2006",
	"1/2/06",
	"1-2-06",
}

var textLayouts = []string{
	"2 Jan 2006",
	"2-Jan-2006",
	"2 Jan, 2006",
	"2 January 2006",
	"2-January-2006",
	"2 Jan 06",
	"2-Jan-06",
	"2Jan2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"Mon, 2 Jan 2006",
	"Mon 2 Jan 2006",
}

var embeddedDateRe = regexp.MustCompile(
	`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}` +
		`|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}` +
		`|\d{1,2}[ -](?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[ -,]+\d{2,4}`,
)

// dateLayouts returns the ordered parser list. ISO comes first so that
// already-normalized input is returned unchanged.
func dateLayouts(dayFirst bool) []string {
	layouts := make([]string, 0, len(isoLayouts)+len(dayFirstLayouts)+len(monthFirstLayouts)+len(textLayouts))
	layouts = append(layouts, isoLayouts...)
	if dayFirst {
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	}
	return append(layouts, textLayouts...)
}

// NormalizeDate converts s to YYYY-MM-DD. The first layout that parses wins;
// when none does, the first date-looking substring is tried. ok is false
// when nothing parses, in which case s is returned trimmed.
func NormalizeDate(s string, dayFirst bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return s, false
	}

	if d, ok := parseDate(s, dayFirst); ok {
		return d.String(), true
	}

	if m := embeddedDateRe.FindString(s); m != "" && m != s {
		if d, ok := parseDate(m, dayFirst); ok {
			return d.String(), true
		}
	}

	return s, false
}

func parseDate(s string, dayFirst bool) (civil.Date, bool) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dateLayouts(dayFirst) {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if d.IsValid() {
			return d, true
		}
	}
	return civil.Date{}, false
}
