package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
)

// PlanGoal asks the planner which goal this message belongs to. The keyword
// hint and recent turns go along so short answers like "7pm" stay attached
// to the goal that asked for them.
func PlanGoal(ctx context.Context, in *GraphState, planner contractx.Planner) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	plan, err := planner.Plan(ctx, contractx.PlannerRequest{
		UserMessage:   in.Text,
		MemorySummary: in.MemorySummary,
		Hint:          in.Hint,
		History:       in.Session.History,
		Session:       in.Session,
		Now:           in.Now,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("session_id", in.Session.SessionID).
		Str("hint", string(in.Hint.Intent)).
		Str("goal_type", plan.Goal.GoalType).
		Strs("missing", plan.Goal.Missing).
		Msg("goal planned")
	in.PlanResp = plan
	return in, nil
}
