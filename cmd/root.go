// Package cmd implements the foodiespot CLI using cobra.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/foodiespot-agent/pkg/config"
	logx "github.com/tanpawarit/foodiespot-agent/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "foodiespot",
	Short:         "FoodieSpot restaurant reservation assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		configx.SetEnvFile(envFile)
		// The logger was set up from the process environment on import;
		// redo it now that the env file is known.
		conf, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return err
		}
		logx.Init(*conf)
		return nil
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env when present)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statusCmd)
}
