package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// BunStore persists the directory and reservations in Postgres through bun.
// Restaurant and reservation lookups inside a transaction take row locks
// (SELECT ... FOR UPDATE), so concurrent ledger operations against the same
// restaurant serialize in the database as well.
type BunStore struct {
	db               *bun.DB
	statementTimeout time.Duration
}

var (
	_ Store          = (*BunStore)(nil)
	_ ReadOnlyRunner = (*BunStore)(nil)
)

type BunStoreOption func(*BunStore)

// WithStatementTimeout bounds read-only gateway queries.
func WithStatementTimeout(d time.Duration) BunStoreOption {
	return func(s *BunStore) {
		s.statementTimeout = d
	}
}

func NewBunStore(db *bun.DB, opts ...BunStoreOption) *BunStore {
	s := &BunStore{
		db:               db,
		statementTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var fnErr error
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(ctx, &bunTx{tx: tx})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return fmt.Errorf("%w: transaction: %v", ErrStorage, err)
}

func (s *BunStore) Recommend(ctx context.Context, filter RecommendFilter) ([]Restaurant, error) {
	out := make([]Restaurant, 0)
	q := s.db.NewSelect().Model(&out)
	if filter.Cuisine != "" {
		q = q.Where("rest.cuisine ILIKE ?", "%"+filter.Cuisine+"%")
	}
	if filter.PartySize > 0 {
		q = q.Where("rest.seating_capacity >= ?", filter.PartySize)
	}
	if filter.MinRating > 0 {
		q = q.Where("rest.rating >= ?", filter.MinRating)
	}
	if filter.Address != "" {
		q = q.Where("rest.address ILIKE ?", "%"+filter.Address+"%")
	}
	if err := q.OrderExpr("rest.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: recommend: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *BunStore) TopRestaurants(ctx context.Context, limit int) ([]Restaurant, error) {
	out := make([]Restaurant, 0, limit)
	q := s.db.NewSelect().Model(&out).OrderExpr("rest.rating DESC, rest.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: top restaurants: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *BunStore) ReservationDetails(ctx context.Context, id int64) (*Booking, error) {
	res := new(Reservation)
	err := s.db.NewSelect().
		Model(res).
		Relation("Restaurant").
		Where("r.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reservation details: %v", ErrStorage, err)
	}
	name := ""
	if res.Restaurant != nil {
		name = res.Restaurant.Name
	}
	return newBooking(res, name), nil
}

// QueryReadOnly runs query in a READ ONLY transaction with a local statement
// timeout and returns at most maxRows rows.
func (s *BunStore) QueryReadOnly(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	result := &QueryResult{}
	err := s.db.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.Tx.ExecContext(ctx, "SET TRANSACTION READ ONLY"); err != nil {
			return err
		}
		if s.statementTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", s.statementTimeout.Milliseconds())
			if _, err := tx.Tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		rows, err := tx.Tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		result.Columns = cols

		for rows.Next() {
			if maxRows > 0 && len(result.Rows) >= maxRows {
				result.Truncated = true
				break
			}
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			for i, v := range values {
				if b, ok := v.([]byte); ok {
					values[i] = string(b)
				}
			}
			result.Rows = append(result.Rows, values)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStorage, err)
	}
	return result, nil
}

type bunTx struct {
	tx bun.Tx
}

func (t *bunTx) RestaurantByName(ctx context.Context, name string) (*Restaurant, error) {
	r := new(Restaurant)
	err := t.tx.NewSelect().Model(r).Where("rest.name = ?", name).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: restaurant %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select restaurant: %v", ErrStorage, err)
	}
	return r, nil
}

func (t *bunTx) RestaurantByID(ctx context.Context, id int64) (*Restaurant, error) {
	r := new(Restaurant)
	err := t.tx.NewSelect().Model(r).Where("rest.id = ?", id).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select restaurant: %v", ErrStorage, err)
	}
	return r, nil
}

func (t *bunTx) ReservationByID(ctx context.Context, id int64) (*Reservation, error) {
	res := new(Reservation)
	err := t.tx.NewSelect().Model(res).Where("r.id = ?", id).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select reservation: %v", ErrStorage, err)
	}
	return res, nil
}

func (t *bunTx) InsertReservation(ctx context.Context, res *Reservation) error {
	if _, err := t.tx.NewInsert().Model(res).Returning("id, created_at").Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert reservation: %v", ErrStorage, err)
	}
	return nil
}

func (t *bunTx) UpdateReservation(ctx context.Context, res *Reservation) error {
	result, err := t.tx.NewUpdate().
		Model(res).
		Column("date", "time", "party_size").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: update reservation: %v", ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reservation %d", ErrNotFound, res.ID)
	}
	return nil
}

func (t *bunTx) DeleteReservation(ctx context.Context, id int64) error {
	result, err := t.tx.NewDelete().Model((*Reservation)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete reservation: %v", ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	return nil
}

func (t *bunTx) AdjustBooking(ctx context.Context, restaurantID int64, delta int) error {
	result, err := t.tx.NewUpdate().
		Model((*Restaurant)(nil)).
		Set("current_booking = current_booking + ?", delta).
		Where("id = ?", restaurantID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: adjust booking: %v", ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: restaurant %d", ErrNotFound, restaurantID)
	}
	return nil
}
