package contract

import (
	"time"

	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

type AgentType string

const (
	AgentTypeOrchestrator AgentType = "orchestrator"
	AgentTypePlanner      AgentType = "planner"
	AgentTypeBooking      AgentType = "booking"
	AgentTypeConcierge    AgentType = "concierge"
)

// AgentForIntent maps an intent family onto the specialist that owns it.
func AgentForIntent(in intent.Intent) AgentType {
	if in.Family() == intent.FamilyBooking {
		return AgentTypeBooking
	}
	return AgentTypeConcierge
}

// IntentHint is the rule based guess made before the planner runs.
type IntentHint struct {
	Intent intent.Intent  `json:"intent"`
	Slots  map[string]any `json:"slots,omitempty"`
}

type PlannerRequest struct {
	UserMessage   string               `json:"user_message"`
	MemorySummary string               `json:"memory_summary"`
	Hint          IntentHint           `json:"hint"`
	History       []statex.Turn        `json:"history,omitempty"`
	Session       *statex.SessionState `json:"session"`
	Now           time.Time            `json:"now"`
}

type PlannerResponse struct {
	Goal GoalPatch `json:"goal"`
}

type GoalPatch struct {
	GoalID       string         `json:"goal_id,omitempty"`
	GoalType     string         `json:"goal_type"`
	Priority     int            `json:"priority"`
	SlotsPatch   map[string]any `json:"slots_patch,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	NextQuestion string         `json:"next_question,omitempty"`
}

type SpecialistRequest struct {
	UserMessage   string        `json:"user_message"`
	MemorySummary string        `json:"memory_summary"`
	ActiveGoal    *statex.Goal  `json:"active_goal"`
	History       []statex.Turn `json:"history,omitempty"`
	Now           time.Time     `json:"now"`
	ToolResults   []ToolResult  `json:"tool_results,omitempty"`
}

type SpecialistResponse struct {
	Message      string        `json:"message"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
	StateUpdates StateUpdates  `json:"state_updates,omitempty"`
}

type StateUpdates struct {
	SlotsPatch   map[string]any `json:"slots_patch,omitempty"`
	SetStatus    string         `json:"set_status,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	NextQuestion string         `json:"next_question,omitempty"`
	MemoryUpdate string         `json:"memory_update,omitempty"`
	MarkDone     bool           `json:"mark_done,omitempty"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the tool ran without error.
func (r ToolResult) Succeeded() bool {
	return r.Error == ""
}
