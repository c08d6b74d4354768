package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Classifier maps a raw user message to an intent hint. The planner has the
// final say; the hint only steers it and fills obvious slots.
type Classifier interface {
	Classify(text string) Intent
}

// KeywordClassifier is the rule based fallback used when no model is around
// and as a hint for the planner.
type KeywordClassifier struct{}

var _ Classifier = KeywordClassifier{}

var (
	reservationWords = []string{"reservation", "booking"}
	modifyWords      = []string{"change", "modify", "update", "reschedule"}
	cancelWords      = []string{"cancel", "delete"}
	makeWords        = []string{"book", "reserve", "make a reservation"}
	recommendWords   = []string{"recommend", "suggest", "find"}
)

// Classify checks the reservation-scoped intents first so "cancel my booking"
// does not read as a new booking.
func (KeywordClassifier) Classify(text string) Intent {
	t := strings.ToLower(text)
	aboutReservation := containsAny(t, reservationWords)

	switch {
	case aboutReservation && containsAny(t, modifyWords):
		return ModifyReservation
	case aboutReservation && containsAny(t, cancelWords):
		return CancelReservation
	case aboutReservation && strings.Contains(t, "details"):
		return ReservationDetails
	case containsAny(t, makeWords):
		return MakeReservation
	case containsAny(t, recommendWords):
		return RecommendRestaurant
	default:
		return GeneralQuery
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

const monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	rePartySize     = regexp.MustCompile(`(?i)\b(?:party of|table for)\s+(\d{1,3})\b|\b(\d{1,3})\s+(?:people|persons|guests|diners|pax)\b`)
	reReservationID = regexp.MustCompile(`(?i)\b(?:reservation|booking)\s*(?:id|number|no\.?|#)?\s*(?:is|:)?\s*#?(\d+)\b|#(\d+)\b`)
	reDate          = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[-/]\d{1,2}[-/]\d{4}|` +
		`\d{1,2}(?:st|nd|rd|th)?(?:\s+of)?\s+` + monthNames + `(?:,?\s+\d{4})?|` +
		monthNames + `\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?)\b`)
	reTime          = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*(?:am|pm)|\d{1,2}:\d{2}|noon|midnight)\b`)
)

// ExtractSlots pulls the unambiguous slots out of text. Dates and times come
// back normalized; for modifications they land in the new_* slots.
func ExtractSlots(in Intent, text string, now time.Time) map[string]any {
	out := make(map[string]any, 4)

	if m := reReservationID.FindStringSubmatch(text); m != nil {
		if id, err := strconv.ParseInt(firstNonEmpty(m[1:]), 10, 64); err == nil && id > 0 {
			out[SlotReservationID] = id
		}
	}
	if m := rePartySize.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(firstNonEmpty(m[1:])); err == nil && n > 0 {
			out[slotFor(in, SlotPartySize)] = n
		}
	}
	if m := reDate.FindStringSubmatch(text); m != nil {
		if d, err := NormalizeDate(m[1], now); err == nil {
			out[slotFor(in, SlotDate)] = d
		}
	}
	if m := reTime.FindStringSubmatch(text); m != nil {
		if tm, err := NormalizeTime(m[1]); err == nil {
			out[slotFor(in, SlotTime)] = tm
		}
	}
	return out
}

func slotFor(in Intent, slot string) string {
	if in != ModifyReservation {
		return slot
	}
	switch slot {
	case SlotDate:
		return SlotNewDate
	case SlotTime:
		return SlotNewTime
	case SlotPartySize:
		return SlotNewPartySize
	}
	return slot
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
