package orchestratornode

import (
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

// shouldInterleave decides whether candidate preempts the current goal. The
// planner only names a different goal when the user changed topic, so it
// always takes over; the preempted goal is suspended on the stack and
// resumes when candidate finishes.
func shouldInterleave(current *statex.Goal, candidate *statex.Goal) bool {
	if candidate == nil {
		return false
	}
	if current == nil || current.IsDone() {
		return true
	}
	return current.ID != candidate.ID
}
