package intent

import (
	"fmt"
	"strings"
)

// Intent is the resolved user goal for one turn.
type Intent string

const (
	MakeReservation     Intent = "make_reservation"
	ModifyReservation   Intent = "modify_reservation"
	CancelReservation   Intent = "cancel_reservation"
	ReservationDetails  Intent = "reservation_details"
	RecommendRestaurant Intent = "recommend_restaurant"
	GeneralQuery        Intent = "general_query"
)

// Goal families. Booking goals are served by the booking specialist, the
// rest by the concierge.
const (
	FamilyBooking   = "booking"
	FamilyConcierge = "concierge"
)

// Slot names shared by the planner prompt, the goal state and the tools.
const (
	SlotRestaurantName = "restaurant_name"
	SlotDate           = "date"
	SlotTime           = "time"
	SlotPartySize      = "party_size"
	SlotCustomerName   = "customer_name"
	SlotReservationID  = "reservation_id"
	SlotNewDate        = "new_date"
	SlotNewTime        = "new_time"
	SlotNewPartySize   = "new_party_size"
	SlotCuisine        = "cuisine"
	SlotMinRating      = "min_rating"
	SlotAddress        = "address"

	// SlotModification stands for "any of new_date, new_time, new_party_size".
	SlotModification = "modification"
)

var all = []Intent{
	MakeReservation,
	ModifyReservation,
	CancelReservation,
	ReservationDetails,
	RecommendRestaurant,
	GeneralQuery,
}

// All returns every intent in a stable order.
func All() []Intent {
	return append([]Intent(nil), all...)
}

func (i Intent) Valid() bool {
	for _, known := range all {
		if i == known {
			return true
		}
	}
	return false
}

func (i Intent) Family() string {
	switch i {
	case MakeReservation, ModifyReservation, CancelReservation, ReservationDetails:
		return FamilyBooking
	default:
		return FamilyConcierge
	}
}

// GoalType is the session goal type, e.g. booking.make_reservation.
func (i Intent) GoalType() string {
	return i.Family() + "." + string(i)
}

// Priority orders interleaved goals; reservation changes outrank browsing.
func (i Intent) Priority() int {
	switch i {
	case MakeReservation, ModifyReservation, CancelReservation:
		return 50
	case ReservationDetails:
		return 45
	case RecommendRestaurant:
		return 40
	default:
		return 10
	}
}

// Mutating reports whether the intent ends in a ledger write.
func (i Intent) Mutating() bool {
	return i == MakeReservation || i == ModifyReservation || i == CancelReservation
}

// FromGoalType parses booking.* / concierge.* goal types.
func FromGoalType(goalType string) (Intent, error) {
	family, name, ok := strings.Cut(strings.TrimSpace(goalType), ".")
	if !ok {
		return "", fmt.Errorf("goal_type %q has no family prefix", goalType)
	}
	in := Intent(name)
	if !in.Valid() {
		return "", fmt.Errorf("unknown intent %q in goal_type", name)
	}
	if in.Family() != family {
		return "", fmt.Errorf("goal_type %q: intent %s belongs to %s", goalType, name, in.Family())
	}
	return in, nil
}

type requirement struct {
	slot     string
	question string
}

var required = map[Intent][]requirement{
	MakeReservation: {
		{SlotRestaurantName, "Which restaurant would you like to book?"},
		{SlotDate, "For what date would you like to make the reservation?"},
		{SlotTime, "At what time would you like to reserve?"},
		{SlotPartySize, "How many people will be in your party?"},
		{SlotCustomerName, "What name should I put the reservation under?"},
	},
	ModifyReservation: {
		{SlotReservationID, "What is your reservation ID number?"},
		{SlotModification, "What would you like to change about your reservation? The date, time, or party size?"},
	},
	CancelReservation: {
		{SlotReservationID, "What is your reservation ID number?"},
	},
	ReservationDetails: {
		{SlotReservationID, "What is your reservation ID number?"},
	},
}

// Required lists the slots the intent needs before a tool can run.
func Required(i Intent) []string {
	reqs := required[i]
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.slot)
	}
	return out
}

// Missing returns the unfilled required slots in asking order and the
// question for the first of them. Only one question is asked per turn.
func Missing(i Intent, slots map[string]any) ([]string, string) {
	var (
		missing  []string
		question string
	)
	for _, r := range required[i] {
		if filled(r.slot, slots) {
			continue
		}
		if question == "" {
			question = r.question
		}
		missing = append(missing, r.slot)
	}
	return missing, question
}

// Question returns the prompt for a single required slot.
func Question(i Intent, slot string) string {
	for _, r := range required[i] {
		if r.slot == slot {
			return r.question
		}
	}
	return ""
}

func filled(slot string, slots map[string]any) bool {
	if slot == SlotModification {
		return present(slots, SlotNewDate) || present(slots, SlotNewTime) || present(slots, SlotNewPartySize)
	}
	return present(slots, slot)
}

func present(slots map[string]any, key string) bool {
	v, ok := slots[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}
