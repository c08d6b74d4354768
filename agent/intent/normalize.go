package intent

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04"
)

// Day-first layouts win; month-first is only tried when nothing else parses.
var (
	dateLayouts = []string{
		"02-01-2006",
		"2-1-2006",
		"02/01/2006",
		"2/1/2006",
		"2006-01-02",
		"2 January 2006",
		"2 Jan 2006",
		"January 2 2006",
		"Jan 2 2006",
	}
	// Resolved to the next occurrence on or after today.
	yearlessDateLayouts = []string{
		"2 January",
		"2 Jan",
		"January 2",
		"Jan 2",
	}
	fallbackDateLayouts = []string{
		"01-02-2006",
		"1-2-2006",
		"01/02/2006",
		"1/2/2006",
	}
	timeLayouts = []string{
		"15:04",
		"3:04pm",
		"3:04 pm",
		"3pm",
		"3 pm",
		"15.04",
	}

	reOrdinalDay = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)
	reDateFiller = regexp.MustCompile(`^the\s+|\s+of\b`)
	reSept       = regexp.MustCompile(`\bsept\b`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// NormalizeDate resolves relative words against now and returns DD-MM-YYYY.
// Ordinal forms such as "5th of March" are accepted, and a date without a
// year is the next such day on or after today.
func NormalizeDate(s string, now time.Time) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, ",", "")
	switch v {
	case "":
		return "", fmt.Errorf("empty date")
	case "today", "tonight":
		return now.Format(DateLayout), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(DateLayout), nil
	}

	v = reOrdinalDay.ReplaceAllString(v, "$1")
	v = reDateFiller.ReplaceAllString(v, "")
	v = reSept.ReplaceAllString(v, "sep")
	v = strings.TrimSpace(reSpaces.ReplaceAllString(v, " "))

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	for _, layout := range yearlessDateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			if next, ok := nextOccurrence(d.Month(), d.Day(), now); ok {
				return next.Format(DateLayout), nil
			}
		}
	}
	for _, layout := range fallbackDateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// nextOccurrence finds the first year, starting with now's, in which
// month/day exists and is not before today. 29 February may skip years.
func nextOccurrence(month time.Month, day int, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for y := now.Year(); y <= now.Year()+4; y++ {
		d := time.Date(y, month, day, 0, 0, 0, 0, now.Location())
		if d.Month() != month || d.Day() != day {
			continue
		}
		if !d.Before(today) {
			return d, true
		}
	}
	return time.Time{}, false
}

// NormalizeTime accepts 12h and 24h forms and returns HH:MM.
func NormalizeTime(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, ".m.", "m")
	switch v {
	case "":
		return "", fmt.Errorf("empty time")
	case "noon", "midday":
		return "12:00", nil
	case "midnight":
		return "00:00", nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", s)
}
