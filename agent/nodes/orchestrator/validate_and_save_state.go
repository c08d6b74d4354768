package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

// ValidateAndSaveState records the exchange, drops finished goals so their
// slots never leak into the next request, and persists the session. A failed
// save after a committed ledger change is logged and the turn goes on, so
// the user still sees the reservation outcome.
func ValidateAndSaveState(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	historyTurns int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.Session.AppendTurn(statex.RoleUser, in.Text, in.Now, historyTurns)
	in.Session.AppendTurn(statex.RoleAssistant, in.Message, in.Now, historyTurns)
	if pruned := in.Session.PruneDone(); pruned > 0 {
		log.Debug().Str("session_id", in.SessionID).Int("pruned", pruned).Msg("finished goals pruned")
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		if !in.Committed {
			return nil, err
		}
		log.Error().
			Err(err).
			Str("session_id", in.SessionID).
			Str("goal_id", goalID(in)).
			Msg("session save failed after ledger commit")
	}

	return in, nil
}

func goalID(in *GraphState) string {
	if in.ActiveGoal == nil {
		return ""
	}
	return in.ActiveGoal.ID
}
