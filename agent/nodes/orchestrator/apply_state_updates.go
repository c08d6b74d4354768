package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
	"github.com/tanpawarit/foodiespot-agent/agent/tool"
)

func ApplyStateUpdates(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil || in.ActiveGoal == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	updates := in.StateUpdates
	if goalCompleted(in.ActiveGoal, in.ToolResults) {
		updates.MarkDone = true
	}
	if err := applyStateUpdates(in.Session, in.ActiveGoal.ID, updates, in.Now); err != nil {
		return nil, err
	}
	return in, nil
}

// goalCompleted reports whether a tool run this turn fulfilled the goal. The
// ledger has already committed at that point, so the goal is finished even if
// the specialist forgot to say so.
func goalCompleted(goal *statex.Goal, results []contractx.ToolResult) bool {
	goalIntent, err := intent.FromGoalType(goal.Type)
	if err != nil {
		return false
	}
	for _, r := range results {
		if r.Succeeded() && tool.Completes(r.Tool, goalIntent) {
			return true
		}
	}
	return false
}

func applyStateUpdates(
	st *statex.SessionState,
	goalID string,
	updates contractx.StateUpdates,
	now time.Time,
) error {
	if st == nil {
		return fmt.Errorf("%w: nil state", contractx.ErrValidation)
	}
	if strings.TrimSpace(goalID) == "" {
		return fmt.Errorf("%w: goal id is empty", contractx.ErrValidation)
	}

	goal, ok := st.GetGoal(goalID)
	if !ok {
		return fmt.Errorf("%w: goal id=%s", statex.ErrGoalNotFound, goalID)
	}

	for k, v := range updates.SlotsPatch {
		if v == nil {
			continue
		}
		goal.SetSlot(k, v)
	}

	switch {
	case len(updates.Missing) > 0 || strings.TrimSpace(updates.NextQuestion) != "":
		goal.SetMissing(updates.Missing, strings.TrimSpace(updates.NextQuestion))
	case len(updates.SlotsPatch) > 0:
		if goalIntent, err := intent.FromGoalType(goal.Type); err == nil {
			refreshMissing(goal, goalIntent)
		}
	}

	setStatus := strings.TrimSpace(updates.SetStatus)
	if setStatus != "" {
		switch statex.GoalStatus(setStatus) {
		case statex.GoalActive:
			if !goal.IsBlocked() {
				goal.Status = statex.GoalActive
			}
		case statex.GoalBlocked:
			if len(goal.Missing) == 0 || strings.TrimSpace(goal.NextQuestion) == "" {
				return fmt.Errorf("%w: blocked status requires missing+next_question", contractx.ErrValidation)
			}
			goal.Status = statex.GoalBlocked
		case statex.GoalSuspended:
			goal.Status = statex.GoalSuspended
		case statex.GoalDone:
			updates.MarkDone = true
		default:
			return fmt.Errorf("%w: invalid set_status=%q", contractx.ErrValidation, setStatus)
		}
	}

	if updates.MarkDone {
		return st.MarkGoalDone(goalID, now)
	}

	goal.UpdatedAt = now.UTC()
	st.Touch(now)
	return nil
}
