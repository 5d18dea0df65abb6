// Package proposal defines the guardian's sole output type: a single
// configuration-change action, its enumerated type, the status the guardian
// reports alongside it, and the Applier capability that actually carries an
// action out to the cluster.
package proposal

import "github.com/replicated-store/guardian/ids"

// ActionType enumerates the kinds of configuration change the guardian can
// propose. Invalid is the zero value so an unset Action is never mistaken
// for a real proposal.
type ActionType int

const (
	Invalid ActionType = iota
	AssignPrimary
	UpgradeToPrimary
	AddSecondary
	AddSecondaryForLB
	UpgradeToSecondary
	DowngradeToSecondary
	DowngradeToInactive
	Remove
)

func (t ActionType) String() string {
	switch t {
	case AssignPrimary:
		return "ASSIGN_PRIMARY"
	case UpgradeToPrimary:
		return "UPGRADE_TO_PRIMARY"
	case AddSecondary:
		return "ADD_SECONDARY"
	case AddSecondaryForLB:
		return "ADD_SECONDARY_FOR_LB"
	case UpgradeToSecondary:
		return "UPGRADE_TO_SECONDARY"
	case DowngradeToSecondary:
		return "DOWNGRADE_TO_SECONDARY"
	case DowngradeToInactive:
		return "DOWNGRADE_TO_INACTIVE"
	case Remove:
		return "REMOVE"
	default:
		return "INVALID"
	}
}

// Action is the guardian's unit of output: Target is the node the command
// is sent to (usually the primary, or Node itself for ASSIGN_PRIMARY), Node
// is the subject of the change.
type Action struct {
	Target ids.NodeID
	Node   ids.NodeID
	Type   ActionType
}

// InvalidAction is the canonical empty action, returned whenever the
// guardian has nothing to propose.
var InvalidAction = Action{Type: Invalid}

// Status is the guardian's observability-only verdict on a partition,
// produced alongside (but independent of) whatever Action it emits.
type Status int

const (
	Healthy Status = iota
	Ill
	Dead
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Ill:
		return "ill"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}
