package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanpawarit/foodiespot-agent/booking"
)

var seedAfterMigrate bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the restaurants and reservations tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, _, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := booking.CreateSchema(ctx, db); err != nil {
			return err
		}
		fmt.Println("Schema is up to date.")

		if !seedAfterMigrate {
			return nil
		}
		n, err := booking.SeedRestaurants(ctx, db, booking.DefaultRestaurants())
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d restaurants.\n", n)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default restaurant directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, _, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := booking.SeedRestaurants(ctx, db, booking.DefaultRestaurants())
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d restaurants.\n", n)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seedAfterMigrate, "seed", false, "also insert the default restaurants")
}
