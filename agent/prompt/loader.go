package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/booking.txt
	bookingRaw string

	//go:embed template/concierge.txt
	conciergeRaw string
)

// PromptSet holds the system prompts of the planner and the specialists.
// Templates are rendered with FString, so literal braces must be doubled.
type PromptSet struct {
	Planner   string
	Booking   string
	Concierge string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:   strings.TrimSpace(plannerRaw),
		Booking:   strings.TrimSpace(bookingRaw),
		Concierge: strings.TrimSpace(conciergeRaw),
	}
}
