package booking

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

const bookingCheckConstraint = `
DO $$
BEGIN
	ALTER TABLE restaurants
		ADD CONSTRAINT restaurants_booking_check
		CHECK (current_booking >= 0 AND current_booking <= seating_capacity);
EXCEPTION
	WHEN duplicate_object THEN NULL;
END $$;`

// CreateSchema creates the restaurants and reservations tables if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*Restaurant)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create restaurants table: %w", err)
	}
	if _, err := db.ExecContext(ctx, bookingCheckConstraint); err != nil {
		return fmt.Errorf("add booking check constraint: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*Reservation)(nil)).
		IfNotExists().
		ForeignKey(`("restaurant_id") REFERENCES "restaurants" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*Reservation)(nil)).
		Index("reservations_restaurant_id_idx").
		Column("restaurant_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create reservations index: %w", err)
	}
	return nil
}

// SeedRestaurants inserts directory entries, skipping names that exist.
func SeedRestaurants(ctx context.Context, db bun.IDB, restaurants []Restaurant) (int64, error) {
	if len(restaurants) == 0 {
		return 0, nil
	}
	rows := make([]Restaurant, len(restaurants))
	copy(rows, restaurants)
	for i := range rows {
		rows[i].ID = 0
	}
	result, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed restaurants: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// DefaultRestaurants is the directory used by the seed command and the
// in-memory demo store.
func DefaultRestaurants() []Restaurant {
	return []Restaurant{
		{Name: "Pasta Place", Cuisine: "Italian", Rating: 4.5, Address: "12 Via Roma, Downtown", SeatingCapacity: 40},
		{Name: "Taco Fiesta", Cuisine: "Mexican", Rating: 4.2, Address: "88 Market Street, Mission", SeatingCapacity: 30},
		{Name: "Sakura Sushi", Cuisine: "Japanese", Rating: 4.8, Address: "5 Cherry Lane, Uptown", SeatingCapacity: 24},
		{Name: "Curry House", Cuisine: "Indian", Rating: 4.4, Address: "301 Spice Road, Eastside", SeatingCapacity: 50},
		{Name: "Le Petit Bistro", Cuisine: "French", Rating: 4.6, Address: "7 Rue Cler, Old Town", SeatingCapacity: 20},
		{Name: "Dragon Wok", Cuisine: "Chinese", Rating: 4.1, Address: "150 Canal Street, Chinatown", SeatingCapacity: 60},
		{Name: "Green Garden", Cuisine: "Vegetarian", Rating: 4.3, Address: "42 Park Avenue, Midtown", SeatingCapacity: 35},
		{Name: "Smokehouse BBQ", Cuisine: "American", Rating: 4.0, Address: "9 Ranch Road, Westside", SeatingCapacity: 80},
	}
}
