package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/foodiespot-agent/api"
	configx "github.com/tanpawarit/foodiespot-agent/pkg/config"
	"golang.org/x/sync/errgroup"
)

var serveNoChat bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reservation and chat HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoChat, "no-chat", false, "serve only the ledger endpoints")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg, err := configx.New[api.Config]("HTTP")
	if err != nil {
		return err
	}

	a, err := newApp(ctx, !serveNoChat)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []api.Option
	if a.orchestrator != nil {
		opts = append(opts, api.WithChat(a.orchestrator))
	}
	if a.query != nil {
		opts = append(opts, api.WithQuerier(a.query))
	}
	srv, err := api.New(*httpCfg, a.ledger, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	log.Info().
		Str("addr", httpCfg.Addr).
		Bool("chat", a.orchestrator != nil).
		Bool("query", a.query != nil).
		Msg("serving")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
