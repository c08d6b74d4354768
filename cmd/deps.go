package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/foodiespot-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/foodiespot-agent/agent/agents/specialist"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	llmx "github.com/tanpawarit/foodiespot-agent/agent/llm"
	memoryx "github.com/tanpawarit/foodiespot-agent/agent/memory"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
	"github.com/tanpawarit/foodiespot-agent/agent/tool"
	"github.com/tanpawarit/foodiespot-agent/booking"
	"github.com/tanpawarit/foodiespot-agent/events"
	configx "github.com/tanpawarit/foodiespot-agent/pkg/config"
	"github.com/tanpawarit/foodiespot-agent/pkg/postgres"
	qstashx "github.com/tanpawarit/foodiespot-agent/pkg/qstash"
	redisx "github.com/tanpawarit/foodiespot-agent/pkg/redis"
	"github.com/uptrace/bun"
)

// appConfig is read with the APP prefix and selects the backends.
type appConfig struct {
	LedgerBackend  string        `split_words:"true" default:"postgres"` // postgres | memory
	SessionBackend string        `split_words:"true" default:"memory"`   // memory | redis | upstash
	MemoryBackend  string        `split_words:"true" default:"noop"`     // noop | redis
	SessionTTL     time.Duration `split_words:"true" default:"24h"`
	MemoryTTL      time.Duration `split_words:"true" default:"720h"`
	CustomerID     string        `split_words:"true" default:"default-customer"`
	Channel        string        `default:"chat"`
	HistoryTurns   int           `split_words:"true" default:"10"`
	QueryMaxRows   int           `split_words:"true" default:"50"`
}

// app holds the wired components of one process.
type app struct {
	cfg          appConfig
	db           *bun.DB
	redis        *redis.Client
	ledger       *booking.Ledger
	query        *booking.QueryGateway
	orchestrator *orchestrator.Orchestrator
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// newApp wires the ledger and, when withChat is set, the agent on top of it.
func newApp(ctx context.Context, withChat bool) (*app, error) {
	cfg, err := configx.New[appConfig]("APP")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: *cfg}

	if err := a.openLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if withChat {
		if err := a.openAgent(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openLedger(ctx context.Context) error {
	var store booking.Store
	switch strings.ToLower(a.cfg.LedgerBackend) {
	case "memory":
		store = booking.NewMemoryStore(booking.DefaultRestaurants()...)
		log.Warn().Msg("using in-memory ledger, reservations are lost on exit")
	case "postgres", "":
		db, dbCfg, err := openDB(ctx)
		if err != nil {
			return err
		}
		a.db = db
		bunStore := booking.NewBunStore(db, booking.WithStatementTimeout(dbCfg.QueryTimeout))
		store = bunStore
		query, err := booking.NewQueryGateway(bunStore, a.cfg.QueryMaxRows)
		if err != nil {
			return err
		}
		a.query = query
	default:
		return fmt.Errorf("unknown ledger backend %q", a.cfg.LedgerBackend)
	}

	var opts []booking.LedgerOption
	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	if notifier != nil {
		opts = append(opts, booking.WithNotifier(notifier))
	}

	ledger, err := booking.NewLedger(store, opts...)
	if err != nil {
		return err
	}
	a.ledger = ledger
	return nil
}

func openDB(ctx context.Context) (*bun.DB, *postgres.Config, error) {
	dbCfg, err := configx.New[postgres.Config]("DB")
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.Open(ctx, *dbCfg)
	if err != nil {
		return nil, nil, err
	}
	return db, dbCfg, nil
}

// newNotifier returns nil when QStash is not configured.
func newNotifier() (booking.Notifier, error) {
	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if !qCfg.Enabled() {
		return nil, nil
	}
	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		return nil, err
	}
	return events.NewQStashNotifier(client, qCfg.Destination)
}

func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rCfg, err := configx.New[redisx.Config]("REDIS")
	if err != nil {
		return nil, err
	}
	client, err := redisx.Open(ctx, *rCfg)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return client, nil
}

func (a *app) openAgent(ctx context.Context) error {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return err
	}
	registry, err := specialist.NewRegistry(ctx, *llmCfg)
	if err != nil {
		return err
	}

	var gatewayOpts []tool.GatewayOption
	if a.query != nil {
		gatewayOpts = append(gatewayOpts, tool.WithQuerier(a.query))
	}
	gateway, err := tool.NewGateway(a.ledger, gatewayOpts...)
	if err != nil {
		return err
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	memory, err := a.memoryStore(ctx)
	if err != nil {
		return err
	}

	o, err := orchestrator.New(store, registry, gateway, memory, orchestrator.Config{
		CustomerID:   a.cfg.CustomerID,
		Channel:      a.cfg.Channel,
		HistoryTurns: a.cfg.HistoryTurns,
	})
	if err != nil {
		return err
	}
	a.orchestrator = o
	return nil
}

func (a *app) sessionStore(ctx context.Context) (statex.Store, error) {
	switch strings.ToLower(a.cfg.SessionBackend) {
	case "memory", "":
		return statex.NewMemoryStore(), nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return statex.NewRedisStore(client, statex.WithTTL(a.cfg.SessionTTL))
	case "upstash":
		uCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS_REST")
		if err != nil {
			return nil, err
		}
		return statex.NewUpstashRedisStore(*uCfg, statex.WithTTL(a.cfg.SessionTTL))
	default:
		return nil, fmt.Errorf("unknown session backend %q", a.cfg.SessionBackend)
	}
}

func (a *app) memoryStore(ctx context.Context) (contractx.MemoryStore, error) {
	switch strings.ToLower(a.cfg.MemoryBackend) {
	case "noop", "":
		return memoryx.Noop{}, nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return memoryx.NewRedisMemory(client, memoryx.WithTTL(a.cfg.MemoryTTL))
	default:
		return nil, fmt.Errorf("unknown memory backend %q", a.cfg.MemoryBackend)
	}
}
