package booking

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04"
)

// Restaurant is a directory entry. CurrentBooking is the running total of
// party sizes over the restaurant's existing reservations.
type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:rest"`

	ID              int64   `bun:"id,pk,autoincrement" json:"id"`
	Name            string  `bun:"name,notnull,unique" json:"name"`
	Cuisine         string  `bun:"cuisine,notnull" json:"cuisine"`
	Rating          float64 `bun:"rating,notnull,default:0" json:"rating"`
	Address         string  `bun:"address,notnull" json:"address"`
	SeatingCapacity int     `bun:"seating_capacity,notnull" json:"seating_capacity"`
	CurrentBooking  int     `bun:"current_booking,notnull,default:0" json:"current_booking"`
}

// Available returns the seats left in the global pool.
func (r *Restaurant) Available() int {
	return r.SeatingCapacity - r.CurrentBooking
}

// Fits reports whether replacing oldSize seats with newSize keeps the
// restaurant within capacity. Sizes are non-negative, so the delta cannot
// overflow where a running sum could.
func (r *Restaurant) Fits(oldSize, newSize int) bool {
	if newSize > r.SeatingCapacity {
		return false
	}
	return newSize-oldSize <= r.Available()
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	RestaurantID int64     `bun:"restaurant_id,notnull" json:"restaurant_id"`
	CustomerName string    `bun:"customer_name,notnull" json:"customer_name"`
	Date         time.Time `bun:"date,type:date,notnull" json:"date"`
	Time         string    `bun:"time,notnull" json:"time"`
	PartySize    int       `bun:"party_size,notnull" json:"party_size"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Restaurant *Restaurant `bun:"rel:belongs-to,join:restaurant_id=id" json:"-"`
}

// Booking is what the ledger hands back after a successful mutation or
// lookup: the reservation joined with its restaurant name.
type Booking struct {
	ReservationID  int64  `json:"reservation_id"`
	RestaurantID   int64  `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	CustomerName   string `json:"customer_name"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PartySize      int    `json:"party_size"`
}

func newBooking(res *Reservation, restaurantName string) *Booking {
	return &Booking{
		ReservationID:  res.ID,
		RestaurantID:   res.RestaurantID,
		RestaurantName: restaurantName,
		CustomerName:   res.CustomerName,
		Date:           res.Date.Format(DateLayout),
		Time:           res.Time,
		PartySize:      res.PartySize,
	}
}

func (b *Booking) Confirmation() string {
	return fmt.Sprintf("Reservation confirmed for %s at %s on %s at %s for %d people. Reservation ID: %d",
		b.CustomerName, b.RestaurantName, b.Date, b.Time, b.PartySize, b.ReservationID)
}

func (b *Booking) Details() string {
	return fmt.Sprintf("Reservation ID: %d\nRestaurant: %s\nCustomer: %s\nDate: %s\nTime: %s\nParty Size: %d",
		b.ReservationID, b.RestaurantName, b.CustomerName, b.Date, b.Time, b.PartySize)
}

// RecommendFilter narrows a directory read. Zero values mean "any".
type RecommendFilter struct {
	Cuisine   string  `json:"cuisine,omitempty"`
	PartySize int     `json:"party_size,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
	Address   string  `json:"address,omitempty"`
}

func (f RecommendFilter) Match(r *Restaurant) bool {
	if f.Cuisine != "" && !containsFold(r.Cuisine, f.Cuisine) {
		return false
	}
	if f.PartySize > 0 && r.SeatingCapacity < f.PartySize {
		return false
	}
	if f.MinRating > 0 && r.Rating < f.MinRating {
		return false
	}
	if f.Address != "" && !containsFold(r.Address, f.Address) {
		return false
	}
	return true
}

// QueryResult is a generic row set returned by the query gateway.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}
