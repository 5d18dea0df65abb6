package guardian

import (
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// Validator implements spec.md §4.1: it consumes the head of a partition's
// planned-action queue and either hands back a single valid Action or
// discards it. It is stateless; Collector is the only collaborator it
// needs beyond the view itself.
type Validator struct {
	Collector liveness.Collector
}

// FromProposals pops the head of pid's action queue and returns it iff
// every validity predicate in spec.md §4.1 holds. It returns (_, false) both
// when the queue was empty and when the popped action failed validation;
// callers cannot tell the two apart, and a rejection is not logged. A
// rejected action is never re-queued.
func (val *Validator) FromProposals(v *view.View, pid ids.GPID) (proposal.Action, bool) {
	pc, cc, ok := v.Partition(pid)
	if !ok {
		return proposal.InvalidAction, false
	}

	action, ok := cc.Actions.Pop()
	if !ok {
		return proposal.InvalidAction, false
	}

	if val.valid(v, pc, pid, action) {
		return action, true
	}

	return proposal.InvalidAction, false
}

func (val *Validator) valid(v *view.View, pc *partition.Config, pid ids.GPID, action proposal.Action) bool {
	// 1. target and node are both non-empty identities.
	if action.Target == "" || action.Node == "" {
		return false
	}

	// 2. target is alive; node is alive.
	if !v.IsAlive(action.Target) || !v.IsAlive(action.Node) {
		return false
	}

	// 3. type-specific membership checks.
	switch action.Type {
	case proposal.AssignPrimary:
		if pc.Primary != "" {
			return false
		}
	case proposal.UpgradeToPrimary:
		if !pc.IsSecondary(action.Node) {
			return false
		}
	case proposal.AddSecondary, proposal.AddSecondaryForLB:
		if pc.IsMember(action.Node) {
			return false
		}
	case proposal.Remove, proposal.DowngradeToInactive, proposal.DowngradeToSecondary:
		if !pc.IsMember(action.Node) {
			return false
		}
	default:
		return false
	}

	// 4. for ADD_SECONDARY, an in-progress learning round must not have
	// reported an error for this node.
	if action.Type == proposal.AddSecondary || action.Type == proposal.AddSecondaryForLB {
		if info, ok := val.Collector.Collected(action.Node, pid); ok {
			if info.Status == liveness.StatusError {
				return false
			}
		}
	}

	return true
}
