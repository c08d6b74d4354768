package booking

import "context"

// Store is the persistence contract used by the ledger. Every mutation runs
// inside RunInTx; an error returned from fn rolls back every write made in it.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Recommend(ctx context.Context, filter RecommendFilter) ([]Restaurant, error)
	TopRestaurants(ctx context.Context, limit int) ([]Restaurant, error)
	ReservationDetails(ctx context.Context, id int64) (*Booking, error)
}

// Tx is the set of reads and writes available inside a transaction. Lookups
// lock the restaurant row for the rest of the transaction.
type Tx interface {
	RestaurantByName(ctx context.Context, name string) (*Restaurant, error)
	RestaurantByID(ctx context.Context, id int64) (*Restaurant, error)
	ReservationByID(ctx context.Context, id int64) (*Reservation, error)

	InsertReservation(ctx context.Context, res *Reservation) error
	UpdateReservation(ctx context.Context, res *Reservation) error
	DeleteReservation(ctx context.Context, id int64) error
	AdjustBooking(ctx context.Context, restaurantID int64, delta int) error
}

// ReadOnlyRunner executes one statement without any write privileges.
type ReadOnlyRunner interface {
	QueryReadOnly(ctx context.Context, query string, maxRows int) (*QueryResult, error)
}
