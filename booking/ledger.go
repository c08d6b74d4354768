package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultTopRestaurants = 3

// Ledger keeps every restaurant's current_booking equal to the sum of the
// party sizes of its reservations. Each mutation pairs the reservation write
// with the counter adjustment in one transaction, and mutations against the
// same restaurant are serialized in-process.
type Ledger struct {
	store    Store
	notifier Notifier
	locks    *keyedMutex
	now      func() time.Time
}

type LedgerOption func(*Ledger)

func WithNotifier(n Notifier) LedgerOption {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLedger(store Store, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("booking store is required")
	}
	l := &Ledger{
		store:    store,
		notifier: noopNotifier{},
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

type CreateRequest struct {
	RestaurantName string `json:"restaurant_name"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PartySize      int    `json:"party_size"`
	CustomerName   string `json:"customer_name"`
}

func (r CreateRequest) validate() (time.Time, string, error) {
	if strings.TrimSpace(r.RestaurantName) == "" {
		return time.Time{}, "", fmt.Errorf("%w: restaurant name is required", ErrValidation)
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return time.Time{}, "", fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if err := validatePartySize(r.PartySize); err != nil {
		return time.Time{}, "", err
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return time.Time{}, "", err
	}
	clock, err := ParseTime(r.Time)
	if err != nil {
		return time.Time{}, "", err
	}
	return date, clock, nil
}

// Changes holds the optional overrides of ModifyReservation. Nil fields keep
// their current value.
type Changes struct {
	Date      *string `json:"new_date,omitempty"`
	Time      *string `json:"new_time,omitempty"`
	PartySize *int    `json:"new_party_size,omitempty"`
}

func (c Changes) Empty() bool {
	return c.Date == nil && c.Time == nil && c.PartySize == nil
}

func (l *Ledger) CreateReservation(ctx context.Context, req CreateRequest) (*Booking, error) {
	date, clock, err := req.validate()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.RestaurantName)

	unlock := l.locks.Lock(name)
	defer unlock()

	var (
		out  *Booking
		rest *Restaurant
	)
	err = l.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rest, err = tx.RestaurantByName(ctx, name)
		if err != nil {
			return err
		}
		if !rest.Fits(0, req.PartySize) {
			return fmt.Errorf("%w: %s has %d of %d seats left, requested %d",
				ErrCapacityExceeded, rest.Name, rest.Available(), rest.SeatingCapacity, req.PartySize)
		}

		res := &Reservation{
			RestaurantID: rest.ID,
			CustomerName: strings.TrimSpace(req.CustomerName),
			Date:         date,
			Time:         clock,
			PartySize:    req.PartySize,
			CreatedAt:    l.now().UTC(),
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		if err := tx.AdjustBooking(ctx, rest.ID, req.PartySize); err != nil {
			return err
		}
		rest.CurrentBooking += req.PartySize
		out = newBooking(res, rest.Name)
		return nil
	})
	if err != nil {
		logFailure("create_reservation", err).Str("restaurant", name).Int("party_size", req.PartySize).Send()
		return nil, err
	}

	log.Info().
		Int64("reservation_id", out.ReservationID).
		Int64("restaurant_id", out.RestaurantID).
		Int("party_size", out.PartySize).
		Int("current_booking", rest.CurrentBooking).
		Msg("reservation created")
	l.notify(ctx, Event{
		Type:            EventReservationCreated,
		Booking:         *out,
		CurrentBooking:  rest.CurrentBooking,
		SeatingCapacity: rest.SeatingCapacity,
	})
	return out, nil
}

func (l *Ledger) ModifyReservation(ctx context.Context, id int64, changes Changes) (*Booking, error) {
	var (
		newDate  time.Time
		newClock string
		err      error
	)
	if changes.Date != nil {
		if newDate, err = ParseDate(*changes.Date); err != nil {
			return nil, err
		}
	}
	if changes.Time != nil {
		if newClock, err = ParseTime(*changes.Time); err != nil {
			return nil, err
		}
	}
	if changes.PartySize != nil {
		if err := validatePartySize(*changes.PartySize); err != nil {
			return nil, err
		}
	}

	unlock, err := l.lockReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		out     *Booking
		rest    *Restaurant
		oldSize int
	)
	err = l.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		res, err := tx.ReservationByID(ctx, id)
		if err != nil {
			return err
		}
		rest, err = tx.RestaurantByID(ctx, res.RestaurantID)
		if err != nil {
			return err
		}

		oldSize = res.PartySize
		newSize := res.PartySize
		if changes.PartySize != nil {
			newSize = *changes.PartySize
			if !rest.Fits(oldSize, newSize) {
				return fmt.Errorf("%w: %s cannot grow reservation %d from %d to %d (%d of %d booked)",
					ErrCapacityExceeded, rest.Name, id, oldSize, newSize, rest.CurrentBooking, rest.SeatingCapacity)
			}
		}

		if changes.Date != nil {
			res.Date = newDate
		}
		if changes.Time != nil {
			res.Time = newClock
		}
		res.PartySize = newSize

		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		if delta := newSize - oldSize; delta != 0 {
			if err := tx.AdjustBooking(ctx, rest.ID, delta); err != nil {
				return err
			}
			rest.CurrentBooking += delta
		}
		out = newBooking(res, rest.Name)
		return nil
	})
	if err != nil {
		logFailure("modify_reservation", err).Int64("reservation_id", id).Send()
		return nil, err
	}

	log.Info().
		Int64("reservation_id", id).
		Int64("restaurant_id", out.RestaurantID).
		Int("old_party_size", oldSize).
		Int("party_size", out.PartySize).
		Int("current_booking", rest.CurrentBooking).
		Msg("reservation modified")
	l.notify(ctx, Event{
		Type:              EventReservationModified,
		Booking:           *out,
		PreviousPartySize: oldSize,
		CurrentBooking:    rest.CurrentBooking,
		SeatingCapacity:   rest.SeatingCapacity,
	})
	return out, nil
}

func (l *Ledger) CancelReservation(ctx context.Context, id int64) (*Booking, error) {
	unlock, err := l.lockReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		out  *Booking
		rest *Restaurant
	)
	err = l.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		res, err := tx.ReservationByID(ctx, id)
		if err != nil {
			return err
		}
		rest, err = tx.RestaurantByID(ctx, res.RestaurantID)
		if err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		if err := tx.AdjustBooking(ctx, rest.ID, -res.PartySize); err != nil {
			return err
		}
		rest.CurrentBooking -= res.PartySize
		out = newBooking(res, rest.Name)
		return nil
	})
	if err != nil {
		logFailure("cancel_reservation", err).Int64("reservation_id", id).Send()
		return nil, err
	}

	log.Info().
		Int64("reservation_id", id).
		Int64("restaurant_id", out.RestaurantID).
		Int("party_size", out.PartySize).
		Int("current_booking", rest.CurrentBooking).
		Msg("reservation cancelled")
	l.notify(ctx, Event{
		Type:            EventReservationCancelled,
		Booking:         *out,
		CurrentBooking:  rest.CurrentBooking,
		SeatingCapacity: rest.SeatingCapacity,
	})
	return out, nil
}

func (l *Ledger) ReservationDetails(ctx context.Context, id int64) (*Booking, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	return l.store.ReservationDetails(ctx, id)
}

func (l *Ledger) Recommend(ctx context.Context, filter RecommendFilter) ([]Restaurant, error) {
	if filter.PartySize < 0 {
		return nil, fmt.Errorf("%w: party size must not be negative", ErrValidation)
	}
	if filter.MinRating < 0 || filter.MinRating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	filter.Cuisine = strings.TrimSpace(filter.Cuisine)
	filter.Address = strings.TrimSpace(filter.Address)
	return l.store.Recommend(ctx, filter)
}

// TopRestaurants returns the best rated restaurants, three when limit <= 0.
func (l *Ledger) TopRestaurants(ctx context.Context, limit int) ([]Restaurant, error) {
	if limit <= 0 {
		limit = defaultTopRestaurants
	}
	return l.store.TopRestaurants(ctx, limit)
}

// lockReservation takes the restaurant lock of an existing reservation. The
// reservation is read again inside the transaction.
func (l *Ledger) lockReservation(ctx context.Context, id int64) (func(), error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	current, err := l.store.ReservationDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.locks.Lock(current.RestaurantName), nil
}

func (l *Ledger) notify(ctx context.Context, ev Event) {
	ev.OccurredAt = l.now().UTC()
	if err := l.notifier.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Int64("reservation_id", ev.Booking.ReservationID).
			Msg("reservation event not delivered")
	}
}

func logFailure(op string, err error) *zerolog.Event {
	ev := log.Warn()
	if errors.Is(err, ErrStorage) {
		ev = log.Error()
	}
	return ev.Err(err).Str("op", op)
}
