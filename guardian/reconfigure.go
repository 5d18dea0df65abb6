package guardian

import (
	"time"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// dropBound is the history length Reconfigure prunes ConfigContext.Dropped
// to. The driver sets it once at startup from
// config.GuardianConfig.DropHistoryBound; partition.ConfigContext itself
// stays free of guardian-specific config.
var dropBound = partition.DropHistoryBound

// SetDropBound overrides the drop-history bound Reconfigure enforces.
func SetDropBound(n int) {
	if n > 0 {
		dropBound = n
	}
}

// Reconfigure folds an applied action's effect back into the view: it
// updates pc's membership, maintains cc's dropped history, and adjusts the
// affected nodes' load counters. It is the guardian's only writer of view
// state; the cure/validate paths never mutate what they read.
//
// newBallot is the ballot the applier reports the cluster settled on for
// this change; callers get it from proposal.Applier.OnApplied.
func Reconfigure(v *view.View, pid ids.GPID, action proposal.Action, newBallot int64) error {
	pc, cc, ok := v.Partition(pid)
	if !ok {
		return ErrUnknownPartition
	}

	before := pc.Clone()

	switch action.Type {
	case proposal.AssignPrimary, proposal.UpgradeToPrimary:
		pc.RemoveSecondary(action.Node)
		pc.Primary = action.Node
		cc.RemoveDropped(action.Node)

	case proposal.AddSecondary, proposal.AddSecondaryForLB, proposal.UpgradeToSecondary:
		pc.Secondaries = append(pc.Secondaries, action.Node)
		cc.RemoveDropped(action.Node)

	case proposal.DowngradeToSecondary:
		if pc.Primary == action.Node {
			pc.Primary = ""
		}
		pc.Secondaries = append(pc.Secondaries, action.Node)

	case proposal.Remove, proposal.DowngradeToInactive:
		if pc.Primary == action.Node {
			pc.Primary = ""
		} else {
			pc.RemoveSecondary(action.Node)
		}
		cc.AppendDropped(partition.DroppedReplica{
			Node:     action.Node,
			DropTime: nowUnix(),
			Ballot:   partition.NotCollected,
		}, dropBound)

	default:
		return ErrInvariantViolation
	}

	pc.Ballot = newBallot

	if err := pc.Validate(); err != nil {
		*pc = *before
		return ErrInvariantViolation
	}

	if err := applyLoadDelta(v, before, pc); err != nil {
		*pc = *before
		return err
	}

	// A node regains a clean slate the moment it rejoins any partition's
	// membership; DDD will demand fresh metadata before trusting it again.
	if !before.IsMember(action.Node) && pc.IsMember(action.Node) {
		v.Node(action.Node).ReplicasCollected = false
	}

	appendLastDrop(pc, action)

	return nil
}

// applyLoadDelta adjusts PrimaryCount/PartitionCount for every node whose
// membership in pc changed between before and after, returning
// ErrInvariantViolation if any counter would go negative.
func applyLoadDelta(v *view.View, before, after *partition.Config) error {
	delta := map[ids.NodeID]struct{ primary, partition int }{}

	adjust := func(node ids.NodeID, primaryDelta, partitionDelta int) {
		if node == "" {
			return
		}
		d := delta[node]
		d.primary += primaryDelta
		d.partition += partitionDelta
		delta[node] = d
	}

	if before.Primary != "" {
		adjust(before.Primary, -1, -1)
	}
	for _, s := range before.Secondaries {
		adjust(s, 0, -1)
	}
	if after.Primary != "" {
		adjust(after.Primary, 1, 1)
	}
	for _, s := range after.Secondaries {
		adjust(s, 0, 1)
	}

	for node, d := range delta {
		ns := v.Node(node)
		if ns.PrimaryCount+d.primary < 0 || ns.PartitionCount+d.partition < 0 {
			return ErrInvariantViolation
		}
		ns.PrimaryCount += d.primary
		ns.PartitionCount += d.partition

		// A node only gets its liveness flag touched here when it's
		// gaining membership it didn't have before; liveness for a node
		// losing membership (Remove/DowngradeToInactive) stays exactly
		// what the last heartbeat said it was.
		if !before.IsMember(node) && after.IsMember(node) {
			ns.Alive = true
		}
	}

	return nil
}

// appendLastDrop keeps pc.LastDrops (the DDD candidate pool) aligned with
// membership changes: a node that just left goes on the end, a node that
// just (re)joined comes off.
func appendLastDrop(pc *partition.Config, action proposal.Action) {
	switch action.Type {
	case proposal.Remove, proposal.DowngradeToInactive:
		pc.LastDrops = append(removeFromSlice(pc.LastDrops, action.Node), action.Node)
	case proposal.AssignPrimary, proposal.UpgradeToPrimary, proposal.AddSecondary, proposal.AddSecondaryForLB, proposal.UpgradeToSecondary:
		pc.LastDrops = removeFromSlice(pc.LastDrops, action.Node)
	}
}

func removeFromSlice(nodes []ids.NodeID, node ids.NodeID) []ids.NodeID {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n != node {
			out = append(out, n)
		}
	}
	return out
}

func nowUnix() int64 { return time.Now().Unix() }
