package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by restoring a snapshot. It backs the demo mode and the tests.
type MemoryStore struct {
	mu           sync.Mutex
	restaurants  map[int64]*Restaurant
	reservations map[int64]*Reservation
	nextRestID   int64
	nextResID    int64

	// op -> error returned on the next call of that op
	failures map[string]error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(restaurants ...Restaurant) *MemoryStore {
	s := &MemoryStore{
		restaurants:  make(map[int64]*Restaurant, len(restaurants)),
		reservations: make(map[int64]*Reservation),
		failures:     make(map[string]error),
	}
	for _, r := range restaurants {
		s.AddRestaurant(r)
	}
	return s
}

// AddRestaurant inserts a directory entry, assigning an id when none is set.
func (s *MemoryStore) AddRestaurant(r Restaurant) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		s.nextRestID++
		r.ID = s.nextRestID
	} else if r.ID > s.nextRestID {
		s.nextRestID = r.ID
	}
	cp := r
	s.restaurants[r.ID] = &cp
	return r.ID
}

// FailNext makes the next call of op ("insert", "update", "delete", "adjust")
// inside a transaction return err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Restaurant returns a copy of the directory entry.
func (s *MemoryStore) Restaurant(id int64) (Restaurant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return Restaurant{}, false
	}
	return *r, true
}

// Reservations returns copies of every reservation held for a restaurant.
func (s *MemoryStore) Reservations(restaurantID int64) []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reservation, 0)
	for _, res := range s.reservations {
		if res.RestaurantID == restaurantID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	restSnap := make(map[int64]Restaurant, len(s.restaurants))
	for id, r := range s.restaurants {
		restSnap[id] = *r
	}
	resSnap := make(map[int64]Reservation, len(s.reservations))
	for id, r := range s.reservations {
		resSnap[id] = *r
	}

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restaurants = make(map[int64]*Restaurant, len(restSnap))
		for id, r := range restSnap {
			cp := r
			s.restaurants[id] = &cp
		}
		s.reservations = make(map[int64]*Reservation, len(resSnap))
		for id, r := range resSnap {
			cp := r
			s.reservations[id] = &cp
		}
		return err
	}
	return nil
}

func (s *MemoryStore) Recommend(ctx context.Context, filter RecommendFilter) ([]Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Restaurant, 0)
	for _, r := range s.restaurants {
		if filter.Match(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) TopRestaurants(ctx context.Context, limit int) ([]Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating == out[j].Rating {
			return out[i].ID < out[j].ID
		}
		return out[i].Rating > out[j].Rating
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ReservationDetails(ctx context.Context, id int64) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	rest, ok := s.restaurants[res.RestaurantID]
	if !ok {
		return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, res.RestaurantID)
	}
	return newBooking(res, rest.Name), nil
}

type memTx struct {
	s *MemoryStore
}

func (t *memTx) fail(op string) error {
	if err, ok := t.s.failures[op]; ok {
		delete(t.s.failures, op)
		return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
	}
	return nil
}

func (t *memTx) RestaurantByName(ctx context.Context, name string) (*Restaurant, error) {
	for _, r := range t.s.restaurants {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: restaurant %q", ErrNotFound, name)
}

func (t *memTx) RestaurantByID(ctx context.Context, id int64) (*Restaurant, error) {
	r, ok := t.s.restaurants[id]
	if !ok {
		return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) ReservationByID(ctx context.Context, id int64) (*Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *Reservation) error {
	if err := t.fail("insert"); err != nil {
		return err
	}
	if _, ok := t.s.restaurants[res.RestaurantID]; !ok {
		return fmt.Errorf("%w: foreign key restaurant_id=%d", ErrStorage, res.RestaurantID)
	}
	// sequence values are consumed even when the transaction rolls back
	t.s.nextResID++
	res.ID = t.s.nextResID
	cp := *res
	t.s.reservations[res.ID] = &cp
	return nil
}

func (t *memTx) UpdateReservation(ctx context.Context, res *Reservation) error {
	if err := t.fail("update"); err != nil {
		return err
	}
	cur, ok := t.s.reservations[res.ID]
	if !ok {
		return fmt.Errorf("%w: reservation %d", ErrNotFound, res.ID)
	}
	cur.Date = res.Date
	cur.Time = res.Time
	cur.PartySize = res.PartySize
	return nil
}

func (t *memTx) DeleteReservation(ctx context.Context, id int64) error {
	if err := t.fail("delete"); err != nil {
		return err
	}
	if _, ok := t.s.reservations[id]; !ok {
		return fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	delete(t.s.reservations, id)
	return nil
}

func (t *memTx) AdjustBooking(ctx context.Context, restaurantID int64, delta int) error {
	if err := t.fail("adjust"); err != nil {
		return err
	}
	r, ok := t.s.restaurants[restaurantID]
	if !ok {
		return fmt.Errorf("%w: restaurant %d", ErrNotFound, restaurantID)
	}
	next := r.CurrentBooking + delta
	// mirrors the restaurants_booking_check constraint
	if next < 0 || next > r.SeatingCapacity {
		return fmt.Errorf("%w: current_booking %d outside [0,%d]", ErrStorage, next, r.SeatingCapacity)
	}
	r.CurrentBooking = next
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
