package contract

import "context"

type Planner interface {
	Plan(ctx context.Context, req PlannerRequest) (PlannerResponse, error)
}

type Specialist interface {
	Run(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error)
}

type Registry interface {
	Planner() Planner
	Booking() Specialist
	Concierge() Specialist
}

// ToolGateway runs the tools a specialist asked for. Tool failures come back
// as ToolResult.Error; the returned error is reserved for infrastructure
// problems that should abort the turn.
type ToolGateway interface {
	Execute(ctx context.Context, agentType string, reqs []ToolRequest) ([]ToolResult, error)
}

type MemoryStore interface {
	ReadSummary(ctx context.Context, customerID string) (string, error)
	WriteSummary(ctx context.Context, customerID string, update string) error
}
