package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/foodiespot-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/foodiespot-agent/agent/tool"
)

// Config is read with the HTTP prefix.
type Config struct {
	Addr            string        `default:":8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"90s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// Chat is the conversational side of the service.
type Chat interface {
	Respond(ctx context.Context, sessionID string, text string) (orchestrator.Reply, error)
	Reset(ctx context.Context, sessionID string) error
}

type Server struct {
	echo   *echo.Echo
	cfg    Config
	chat   Chat
	ledger tool.Ledger
	query  tool.Querier
	now    func() time.Time
}

type Option func(*Server)

// WithChat enables the /v1/chat endpoints.
func WithChat(chat Chat) Option {
	return func(s *Server) {
		s.chat = chat
	}
}

// WithQuerier enables POST /v1/query.
func WithQuerier(q tool.Querier) Option {
	return func(s *Server) {
		s.query = q
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, ledger tool.Ledger, opts ...Option) (*Server, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	s := &Server{cfg: cfg, ledger: ledger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("http request")
			return nil
		},
	}))
	s.echo = e
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	v1 := s.echo.Group("/v1")
	if s.chat != nil {
		v1.POST("/chat", s.postChat)
		v1.DELETE("/chat/:session", s.deleteChat)
	}
	v1.GET("/restaurants", s.listRestaurants)
	v1.GET("/restaurants/top", s.topRestaurants)
	v1.POST("/reservations", s.createReservation)
	v1.GET("/reservations/:id", s.getReservation)
	v1.PATCH("/reservations/:id", s.modifyReservation)
	v1.DELETE("/reservations/:id", s.cancelReservation)
	if s.query != nil {
		v1.POST("/query", s.postQuery)
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- s.echo.StartServer(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
