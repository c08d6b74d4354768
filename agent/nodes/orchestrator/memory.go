package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
)

// ReadMemory loads the customer's preference summary for the planner.
func ReadMemory(ctx context.Context, in *GraphState, memory contractx.MemoryStore) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	summary, err := memory.ReadSummary(ctx, in.Session.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("read memory for customer=%s: %w", in.Session.CustomerID, err)
	}
	in.MemorySummary = summary
	return in, nil
}

// WriteMemory appends what the specialist learned about the customer.
// Turns that learned nothing skip the store. Failures are logged and never
// fail the turn.
func WriteMemory(ctx context.Context, in *GraphState, memory contractx.MemoryStore) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	update := strings.TrimSpace(in.StateUpdates.MemoryUpdate)
	if update == "" {
		return in, nil
	}
	if err := memory.WriteSummary(ctx, in.Session.CustomerID, update); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", in.Session.SessionID).
			Str("customer_id", in.Session.CustomerID).
			Msg("customer memory write failed")
		return in, nil
	}
	log.Debug().
		Str("session_id", in.Session.SessionID).
		Str("customer_id", in.Session.CustomerID).
		Msg("customer memory updated")
	return in, nil
}
