package specialist

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	llmx "github.com/tanpawarit/foodiespot-agent/agent/llm"
	promptx "github.com/tanpawarit/foodiespot-agent/agent/prompt"
)

type registryImpl struct {
	planner   contractx.Planner
	booking   contractx.Specialist
	concierge contractx.Specialist
}

func (r *registryImpl) Planner() contractx.Planner {
	return r.planner
}

func (r *registryImpl) Booking() contractx.Specialist {
	return r.booking
}

func (r *registryImpl) Concierge() contractx.Specialist {
	return r.concierge
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	plannerModelCfg := cfg.OpenRouterFor(contractx.AgentTypePlanner)
	plannerModel, err := plannerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create planner model: %v", contractx.ErrModelInvoke, err)
	}
	bookingModelCfg := cfg.OpenRouterFor(contractx.AgentTypeBooking)
	bookingModel, err := bookingModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create booking model: %v", contractx.ErrModelInvoke, err)
	}
	conciergeModelCfg := cfg.OpenRouterFor(contractx.AgentTypeConcierge)
	conciergeModel, err := conciergeModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create concierge model: %v", contractx.ErrModelInvoke, err)
	}

	planner, err := newPlanner(ctx, plannerModel, prompts.Planner)
	if err != nil {
		return nil, err
	}
	booking, err := newSpecialist(ctx, contractx.AgentTypeBooking, bookingModel, prompts.Booking)
	if err != nil {
		return nil, err
	}
	concierge, err := newSpecialist(ctx, contractx.AgentTypeConcierge, conciergeModel, prompts.Concierge)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		planner:   planner,
		booking:   booking,
		concierge: concierge,
	}, nil
}
