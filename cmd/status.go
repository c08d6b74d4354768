package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	llmx "github.com/tanpawarit/foodiespot-agent/agent/llm"
	configx "github.com/tanpawarit/foodiespot-agent/pkg/config"
	"github.com/tanpawarit/foodiespot-agent/pkg/openrouter"
	redisx "github.com/tanpawarit/foodiespot-agent/pkg/redis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the database, redis and model endpoints",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := configx.New[appConfig]("APP")
	if err != nil {
		return err
	}

	failed := 0
	report := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("%-10s FAIL  %v\n", name, err)
			return
		}
		fmt.Printf("%-10s ok\n", name)
	}

	fmt.Printf("ledger backend:  %s\n", cfg.LedgerBackend)
	fmt.Printf("session backend: %s\n", cfg.SessionBackend)
	fmt.Printf("memory backend:  %s\n\n", cfg.MemoryBackend)

	if strings.EqualFold(cfg.LedgerBackend, "postgres") {
		db, _, err := openDB(ctx)
		if err == nil {
			db.Close()
		}
		report("postgres", err)
	}

	if strings.EqualFold(cfg.SessionBackend, "redis") || strings.EqualFold(cfg.MemoryBackend, "redis") {
		report("redis", checkRedis(ctx))
	}

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		report("llm", err)
	} else {
		report("llm", checkModels(ctx, *llmCfg))
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkRedis(ctx context.Context) error {
	rCfg, err := configx.New[redisx.Config]("REDIS")
	if err != nil {
		return err
	}
	client, err := redisx.Open(ctx, *rCfg)
	if err != nil {
		return err
	}
	return client.Close()
}

func checkModels(ctx context.Context, cfg llmx.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	agents := []contractx.AgentType{
		contractx.AgentTypePlanner,
		contractx.AgentTypeBooking,
		contractx.AgentTypeConcierge,
	}
	checked := map[string]bool{}
	for _, agentType := range agents {
		orCfg := cfg.OpenRouterFor(agentType)
		if checked[orCfg.Model] {
			continue
		}
		checked[orCfg.Model] = true
		if err := openrouter.CheckModel(ctx, openrouter.NewClient(orCfg), orCfg.Model); err != nil {
			return fmt.Errorf("%s: %w", agentType, err)
		}
	}
	return nil
}
