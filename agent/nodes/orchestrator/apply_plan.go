package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

func ApplyPlan(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	activeGoal, err := applyPlan(in.Session, in.PlanResp, in.Hint, in.Now)
	if err != nil {
		return nil, err
	}
	if activeGoal == nil {
		return nil, ErrNoActiveGoal
	}

	in.ActiveGoal = activeGoal
	return in, nil
}

// applyPlan merges the planner patch into the session. Required slots are
// recomputed from the goal's intent, so the planner cannot skip a question
// the ledger needs answered.
func applyPlan(
	st *statex.SessionState,
	plan contractx.PlannerResponse,
	hint contractx.IntentHint,
	now time.Time,
) (*statex.Goal, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: session state is nil", contractx.ErrValidation)
	}

	goalType := strings.TrimSpace(plan.Goal.GoalType)
	goalIntent, err := intent.FromGoalType(goalType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	plan.Goal.GoalType = goalType

	targetGoal, created, err := findOrCreateGoal(st, plan.Goal, goalIntent, now)
	if err != nil {
		return nil, err
	}

	if plan.Goal.Priority > 0 {
		targetGoal.Priority = plan.Goal.Priority
	} else if targetGoal.Priority <= 0 {
		targetGoal.Priority = goalIntent.Priority()
	}
	targetGoal.Type = goalType

	for k, v := range plan.Goal.SlotsPatch {
		if v == nil {
			continue
		}
		targetGoal.SetSlot(k, v)
	}
	if hint.Intent == goalIntent {
		for k, v := range hint.Slots {
			if _, ok := targetGoal.Slot(k); !ok {
				targetGoal.SetSlot(k, v)
			}
		}
	}

	current := st.ActiveGoal()
	if created || current == nil || shouldInterleave(current, targetGoal) {
		if err := st.SuspendAndActivate(targetGoal.ID, now); err != nil {
			return nil, err
		}
	}
	refreshMissing(targetGoal, goalIntent)
	targetGoal.UpdatedAt = now.UTC()

	st.Touch(now)
	return st.ActiveGoal(), nil
}

func refreshMissing(g *statex.Goal, in intent.Intent) {
	missing, question := intent.Missing(in, g.Slots)
	g.SetMissing(missing, question)
}

func findOrCreateGoal(
	st *statex.SessionState,
	patch contractx.GoalPatch,
	goalIntent intent.Intent,
	now time.Time,
) (*statex.Goal, bool, error) {
	if st == nil {
		return nil, false, fmt.Errorf("%w: nil state", contractx.ErrValidation)
	}
	st.EnsureGoalsMap()

	if goalID := strings.TrimSpace(patch.GoalID); goalID != "" {
		if g, ok := st.GetGoal(goalID); ok && !g.IsDone() {
			return g, false, nil
		}
	}

	if active := st.ActiveGoal(); active != nil && active.Type == patch.GoalType && !active.IsDone() {
		return active, false, nil
	}

	// A suspended goal of the same type is resumed instead of duplicated.
	for i := len(st.GoalStack) - 1; i >= 0; i-- {
		if g, ok := st.GetGoal(st.GoalStack[i]); ok && g.Type == patch.GoalType && !g.IsDone() {
			return g, false, nil
		}
	}

	g := statex.CreateGoal(newGoalID(goalIntent), patch.GoalType, patch.Priority, now)
	if g.Priority <= 0 {
		g.Priority = goalIntent.Priority()
	}
	if err := st.AddGoal(g); err != nil {
		return nil, false, err
	}
	return g, true, nil
}

func newGoalID(in intent.Intent) string {
	return fmt.Sprintf("%s_%s", in, uuid.NewString()[:8])
}
