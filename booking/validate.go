package booking

import (
	"fmt"
	"strings"
	"time"
)

// ParseDate accepts the normalized DD-MM-YYYY form only.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, use DD-MM-YYYY", ErrValidation, s)
	}
	return d, nil
}

// ParseTime accepts 24h HH:MM and returns it in canonical form.
func ParseTime(s string) (string, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: invalid time %q, use HH:MM", ErrValidation, s)
	}
	return t.Format(TimeLayout), nil
}

func validatePartySize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: party size must be positive, got %d", ErrValidation, n)
	}
	return nil
}
