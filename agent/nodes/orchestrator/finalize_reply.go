package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Message)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: specialist returned empty message", contractx.ErrValidation)
	}

	out := GraphOutput{Reply: reply}
	if in.ActiveGoal != nil {
		out.GoalID = in.ActiveGoal.ID
		out.Status = in.ActiveGoal.Status
		if out.Status == "" {
			out.Status = statex.GoalActive
		}
	}
	return out, nil
}
