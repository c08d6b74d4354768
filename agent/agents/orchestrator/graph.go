package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/foodiespot-agent/agent/nodes/orchestrator"
)

const (
	turnGraphName = "foodiespot.turn"

	nodeValidateRequest = "validate_request"
	nodeFinalizeReply   = "finalize_reply"
)

// turnStep is one state-to-state node of the turn graph.
type turnStep struct {
	name string
	run  func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error)
}

// turnSteps lists the nodes between request validation and the reply, in
// execution order.
func (o *Orchestrator) turnSteps() []turnStep {
	return []turnStep{
		{"load_or_create_state", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, st, o.store, o.customerID, o.channel)
		}},
		{"read_memory", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ReadMemory(ctx, st, o.memory)
		}},
		{"classify_intent", func(_ context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyIntent(st, o.classifier)
		}},
		{"plan_goal", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PlanGoal(ctx, st, o.models.Planner())
		}},
		{"apply_plan", func(_ context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyPlan(st)
		}},
		{"dispatch_specialist", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchSpecialist(ctx, st, o.models, o.tools)
		}},
		{"apply_state_updates", func(_ context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyStateUpdates(st)
		}},
		{"validate_and_save_state", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateAndSaveState(ctx, st, o.store, o.historyTurns)
		}},
		{"write_memory", func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.WriteMemory(ctx, st, o.memory)
		}},
	}
}

// compileTurnGraph builds the linear graph run once per user message.
func (o *Orchestrator) compileTurnGraph(ctx context.Context) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	g := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	validate := func(_ context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
		return nodex.ValidateRequest(in, o.now)
	}
	if err := g.AddLambdaNode(nodeValidateRequest, compose.InvokableLambda(validate)); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeValidateRequest, err)
	}

	order := []string{compose.START, nodeValidateRequest}
	for _, step := range o.turnSteps() {
		if err := g.AddLambdaNode(step.name, compose.InvokableLambda(step.run)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", step.name, err)
		}
		order = append(order, step.name)
	}

	finalize := func(_ context.Context, st *nodex.GraphState) (nodex.GraphOutput, error) {
		return nodex.FinalizeReply(st)
	}
	if err := g.AddLambdaNode(nodeFinalizeReply, compose.InvokableLambda(finalize)); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeFinalizeReply, err)
	}
	order = append(order, nodeFinalizeReply, compose.END)

	for i := 1; i < len(order); i++ {
		if err := g.AddEdge(order[i-1], order[i]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", order[i-1], order[i], err)
		}
	}

	runner, err := g.Compile(ctx, compose.WithGraphName(turnGraphName))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
