package booking

import (
	"context"
	"time"
)

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationModified  EventType = "reservation.modified"
	EventReservationCancelled EventType = "reservation.cancelled"
)

// Event describes a committed ledger mutation.
type Event struct {
	Type              EventType `json:"type"`
	Booking           Booking   `json:"booking"`
	PreviousPartySize int       `json:"previous_party_size,omitempty"`
	CurrentBooking    int       `json:"current_booking"`
	SeatingCapacity   int       `json:"seating_capacity"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Notifier receives events after commit. Its errors never undo a mutation.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) error { return nil }
