// Package applier provides proposal.Applier implementations: an in-memory
// one for tests and small demos, and a goleveldb-backed one that persists
// each applied action.
package applier

import (
	"context"
	"sync"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/proposal"
)

// InMemory is a proposal.Applier that accepts every proposal immediately
// and assigns ballots by simple increment, standing in for a real cluster
// in tests and small demos.
type InMemory struct {
	mu      sync.Mutex
	ballots map[ids.GPID]int64
	sent    []sentProposal
	OnApply func(pid ids.GPID, action proposal.Action, newBallot int64)
}

type sentProposal struct {
	Target ids.NodeID
	PID    ids.GPID
	Action proposal.Action
}

// NewInMemory returns an applier with every partition starting at ballot 0.
func NewInMemory() *InMemory {
	return &InMemory{ballots: make(map[ids.GPID]int64)}
}

// SendProposal implements proposal.Applier. It never fails; the returned
// ballot increment happens via OnApplied instead, matching how a real
// applier only learns the settled ballot after the cluster acknowledges.
func (a *InMemory) SendProposal(ctx context.Context, target ids.NodeID, pid ids.GPID, action proposal.Action) error {
	a.mu.Lock()
	a.sent = append(a.sent, sentProposal{Target: target, PID: pid, Action: action})
	a.mu.Unlock()

	newBallot := a.nextBallot(pid)
	a.OnApplied(pid, action, newBallot)
	return nil
}

// OnApplied implements proposal.Applier, recording the settled ballot and
// invoking OnApply if the caller registered one (typically
// Driver.ApplyReconfigure, which calls guardian.Reconfigure).
func (a *InMemory) OnApplied(pid ids.GPID, action proposal.Action, newBallot int64) {
	if a.OnApply != nil {
		a.OnApply(pid, action, newBallot)
	}
}

func (a *InMemory) nextBallot(pid ids.GPID) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ballots[pid]++
	return a.ballots[pid]
}

// Sent returns every proposal accepted so far, for test assertions.
func (a *InMemory) Sent() []sentProposal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentProposal(nil), a.sent...)
}
