package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
)

// ClassifyIntent attaches the rule based hint. A bare answer such as "7pm"
// classifies as a general query, so while a goal is blocked on a question the
// hint stays with that goal.
func ClassifyIntent(in *GraphState, classifier intent.Classifier) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	hinted := classifier.Classify(in.Text)
	if active := in.Session.ActiveGoal(); active != nil && active.IsBlocked() && hinted == intent.GeneralQuery {
		if current, err := intent.FromGoalType(active.Type); err == nil {
			hinted = current
		}
	}

	in.Hint = contractx.IntentHint{
		Intent: hinted,
		Slots:  intent.ExtractSlots(hinted, in.Text, in.Now),
	}
	return in, nil
}
