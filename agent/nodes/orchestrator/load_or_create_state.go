package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

// LoadOrCreateState attaches the stored session, or a fresh one for a
// session ID seen for the first time.
func LoadOrCreateState(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	customerID string,
	channel string,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.SessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		st = statex.NewSessionState(in.SessionID, customerID, channel, in.Now)
	case err != nil:
		return nil, fmt.Errorf("load session=%s: %w", in.SessionID, err)
	}
	in.Session = st
	return in, nil
}
