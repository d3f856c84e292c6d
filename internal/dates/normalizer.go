// Package dates converts worded, locale-specific listing dates into the canonical DD.MM form.
package dates

import (
	"strings"
	"unicode/utf8"
)

// MonthTable maps rendered month names to two-digit month numbers.
type MonthTable map[string]string

// Normalizer strips Prefix from a raw date and resolves the month name through Months.
type Normalizer struct {
	Prefix string
	Months MonthTable
}

// UkrainianPrefix is the "created" label rendered before listing dates.
const UkrainianPrefix = "створено "

// UkrainianMonths holds the genitive month names as rendered on the page.
func UkrainianMonths() MonthTable {
	return MonthTable{
		"січня":     "01",
		"лютого":    "02",
		"березня":   "03",
		"квітня":    "04",
		"травня":    "05",
		"червня":    "06",
		"липня":     "07",
		"серпня":    "08",
		"вересня":   "09",
		"жовтня":    "10",
		"листопада": "11",
		"грудня":    "12",
	}
}

// Ukrainian returns the default normalizer.
func Ukrainian() Normalizer {
	return Normalizer{Prefix: UkrainianPrefix, Months: UkrainianMonths()}
}

// Normalize returns "DD.MM" for "<prefix><day> <month>" inputs with a known month. Any other
// input is returned unchanged.
func (n Normalizer) Normalize(raw string) string {
	rest := raw
	if n.Prefix != "" {
		rest = strings.ReplaceAll(rest, n.Prefix, "")
	}
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return raw
	}
	day, month := parts[0], parts[1]
	number, ok := n.Months[month]
	if !ok || number == "" {
		return raw
	}
	return padDay(day) + "." + number
}

func padDay(day string) string {
	if n := utf8.RuneCountInString(day); n < 2 {
		return strings.Repeat("0", 2-n) + day
	}
	return day
}
