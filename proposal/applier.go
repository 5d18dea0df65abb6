package proposal

import (
	"context"

	"github.com/replicated-store/guardian/ids"
)

// Applier is the capability the guardian's collaborators use to actually
// carry an Action out to the cluster. It replaces the source system's
// virtual reply_message/send_message override, which existed only so tests
// could intercept outbound RPCs: here that seam is a first-class interface,
// and a test fake implements it directly instead of subclassing a service.
//
// The guardian package itself never calls Applier — that's the driver's
// job. The guardian only produces Actions; something else decides whether
// and how to send them.
type Applier interface {
	// SendProposal delivers action to target. The guardian considers the
	// action delivered the instant this call returns successfully; it makes
	// no assumption about whether, or when, a post-image ever arrives. A
	// non-nil error means the proposal was not sent and the caller must not
	// call OnApplied for it.
	SendProposal(ctx context.Context, target ids.NodeID, pid ids.GPID, action Action) error

	// OnApplied is called once an applier confirms a proposal was durably
	// applied, carrying the accepted post-image's ballot. It is informational
	// plumbing for the driver (which folds the result back via
	// guardian.Reconfigure); the guardian package does not call it either.
	OnApplied(pid ids.GPID, action Action, newBallot int64)
}
