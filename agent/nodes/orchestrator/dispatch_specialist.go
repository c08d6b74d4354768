package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
	"github.com/tanpawarit/foodiespot-agent/agent/tool"
)

// MaxToolRounds bounds specialist -> tools -> specialist iterations per turn.
const MaxToolRounds = 3

const errSecondMutation = "Only one reservation change can be made per message. Please confirm the next change separately."

func DispatchSpecialist(
	ctx context.Context,
	in *GraphState,
	models contractx.Registry,
	tools contractx.ToolGateway,
) (*GraphState, error) {
	if in == nil || in.ActiveGoal == nil {
		return nil, ErrNoActiveGoal
	}

	specialist, agentType, err := pickSpecialist(in.ActiveGoal, models)
	if err != nil {
		return nil, err
	}

	var history []statex.Turn
	if in.Session != nil {
		history = in.Session.History
	}
	req := contractx.SpecialistRequest{
		UserMessage:   in.Text,
		MemorySummary: in.MemorySummary,
		ActiveGoal:    in.ActiveGoal,
		History:       history,
		Now:           in.Now,
	}

	resp, results, err := runToolLoop(ctx, specialist, agentType, tools, req)
	if err != nil {
		return nil, err
	}

	in.AgentType = agentType
	in.Message = strings.TrimSpace(resp.Message)
	in.StateUpdates = resp.StateUpdates
	in.ToolResults = results
	in.Committed = committedMutation(results)
	return in, nil
}

func committedMutation(results []contractx.ToolResult) bool {
	for _, r := range results {
		if r.Succeeded() && tool.IsMutating(r.Tool) {
			return true
		}
	}
	return false
}

// runToolLoop feeds tool results back to the specialist until it answers
// without tool requests. At most one ledger mutation runs per turn; any
// further mutating request is answered with an error result instead.
func runToolLoop(
	ctx context.Context,
	specialist contractx.Specialist,
	agentType contractx.AgentType,
	tools contractx.ToolGateway,
	req contractx.SpecialistRequest,
) (contractx.SpecialistResponse, []contractx.ToolResult, error) {
	mutated := false
	for round := 0; ; round++ {
		resp, err := specialist.Run(ctx, req)
		if err != nil {
			return contractx.SpecialistResponse{}, nil, err
		}
		if len(resp.ToolRequests) == 0 {
			return resp, req.ToolResults, nil
		}
		if round >= MaxToolRounds {
			return contractx.SpecialistResponse{}, nil, fmt.Errorf("%w: specialist still requesting tools after %d rounds", contractx.ErrSchemaViolation, MaxToolRounds)
		}
		if tools == nil {
			return contractx.SpecialistResponse{}, nil, fmt.Errorf("%w: specialist requested tools but no gateway is configured", contractx.ErrValidation)
		}

		allowed := make([]contractx.ToolRequest, 0, len(resp.ToolRequests))
		var refused []contractx.ToolResult
		for _, tr := range resp.ToolRequests {
			if tool.IsMutating(tr.Tool) {
				if mutated {
					refused = append(refused, contractx.ToolResult{Tool: tr.Tool, Error: errSecondMutation})
					continue
				}
				mutated = true
			}
			allowed = append(allowed, tr)
		}

		var results []contractx.ToolResult
		if len(allowed) > 0 {
			results, err = tools.Execute(ctx, string(agentType), allowed)
			if err != nil {
				return contractx.SpecialistResponse{}, nil, err
			}
		}
		log.Debug().
			Str("agent", string(agentType)).
			Int("round", round+1).
			Int("requested", len(resp.ToolRequests)).
			Int("refused", len(refused)).
			Msg("specialist tool round")

		req.ToolResults = append(req.ToolResults, results...)
		req.ToolResults = append(req.ToolResults, refused...)
	}
}

func pickSpecialist(activeGoal *statex.Goal, models contractx.Registry) (contractx.Specialist, contractx.AgentType, error) {
	if activeGoal == nil {
		return nil, "", ErrNoActiveGoal
	}

	goalIntent, err := intent.FromGoalType(activeGoal.Type)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unsupported goal type=%q", contractx.ErrValidation, activeGoal.Type)
	}
	switch agentType := contractx.AgentForIntent(goalIntent); agentType {
	case contractx.AgentTypeBooking:
		return models.Booking(), agentType, nil
	default:
		return models.Concierge(), agentType, nil
	}
}
