package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
	ErrNoActiveGoal   = errors.New("active goal is missing")
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply  string
	GoalID string
	Status statex.GoalStatus
}

type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session       *statex.SessionState
	MemorySummary string
	Hint          contractx.IntentHint
	PlanResp      contractx.PlannerResponse
	ActiveGoal    *statex.Goal
	AgentType     contractx.AgentType

	Message      string
	ToolResults  []contractx.ToolResult
	StateUpdates contractx.StateUpdates
	// Committed is set once a ledger mutation succeeded this turn. From then
	// on the reply must reach the user even if bookkeeping fails.
	Committed bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
