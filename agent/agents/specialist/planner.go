package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

type plannerImpl struct {
	runner compose.Runnable[map[string]any, plannerLLMOutput]
}

type plannerLLMOutput struct {
	GoalID       string         `json:"goal_id,omitempty"`
	GoalType     string         `json:"goal_type"`
	Priority     int            `json:"priority"`
	SlotsPatch   map[string]any `json:"slots_patch,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	NextQuestion string         `json:"next_question,omitempty"`
}

func newPlanner(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*plannerImpl, error) {
	runner, err := compileJSONGraph[plannerLLMOutput](ctx, chatModel, systemPrompt, "planner")
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	return &plannerImpl{runner: runner}, nil
}

func (p *plannerImpl) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"user_message":   req.UserMessage,
		"memory_summary": req.MemorySummary,
		"intent_hint":    req.Hint,
		"history":        summarizeHistory(req.History),
		"session":        summarizeSession(req.Session),
		"today":          formatToday(req.Now),
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: marshal planner payload: %v", contractx.ErrValidation, err)
	}

	out, err := p.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: planner invoke: %v", contractx.ErrModelInvoke, err)
	}

	return normalizePlannerOutput(out)
}

// normalizePlannerOutput validates the goal type and fills what the model may
// leave out: priority from the intent, an empty slot patch.
func normalizePlannerOutput(out plannerLLMOutput) (contractx.PlannerResponse, error) {
	goalType := strings.TrimSpace(out.GoalType)
	goalIntent, err := intent.FromGoalType(goalType)
	if err != nil {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	if out.Priority < 0 {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: priority must be >= 0", contractx.ErrSchemaViolation)
	}

	goal := contractx.GoalPatch{
		GoalID:       strings.TrimSpace(out.GoalID),
		GoalType:     goalType,
		Priority:     out.Priority,
		SlotsPatch:   out.SlotsPatch,
		Missing:      out.Missing,
		NextQuestion: strings.TrimSpace(out.NextQuestion),
	}
	if goal.Priority == 0 {
		goal.Priority = goalIntent.Priority()
	}
	if goal.SlotsPatch == nil {
		goal.SlotsPatch = map[string]any{}
	}
	if len(goal.Missing) > 0 && goal.NextQuestion == "" {
		goal.NextQuestion = intent.Question(goalIntent, goal.Missing[0])
		if goal.NextQuestion == "" {
			return contractx.PlannerResponse{}, fmt.Errorf("%w: blocked goal must include next_question", contractx.ErrSchemaViolation)
		}
	}
	if len(goal.Missing) == 0 {
		goal.NextQuestion = ""
	}
	return contractx.PlannerResponse{Goal: goal}, nil
}

func summarizeSession(st *statex.SessionState) map[string]any {
	if st == nil {
		return map[string]any{}
	}

	goals := make([]map[string]any, 0, len(st.Goals))
	for id, g := range st.Goals {
		if g == nil || g.IsDone() {
			continue
		}
		goals = append(goals, map[string]any{
			"id":            id,
			"type":          g.Type,
			"status":        g.Status,
			"priority":      g.Priority,
			"slots":         g.Slots,
			"missing":       g.Missing,
			"next_question": g.NextQuestion,
		})
	}

	return map[string]any{
		"active_goal_id": st.ActiveGoalID,
		"goal_stack":     st.GoalStack,
		"goals":          goals,
	}
}
