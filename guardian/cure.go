// Package guardian is the decision core: the from-proposals validator, the
// cure engine, and the reconfigure hook described in spec.md §4. Every
// function here is pure over the view.View and liveness collaborators it is
// given — no network, no disk, no background goroutines.
package guardian

import (
	"sort"

	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// CureEngine implements spec.md §4.2: given a partition whose configuration
// is not healthy, it produces the single next proposal that moves the
// partition toward health.
type CureEngine struct {
	Config    config.GuardianConfig
	Collector liveness.Collector
}

// Cure evaluates pid's current configuration against cfg and returns a
// status plus, for non-healthy partitions, the one action to emit.
func (e *CureEngine) Cure(v *view.View, pid ids.GPID) (proposal.Status, proposal.Action) {
	pc, cc, ok := v.Partition(pid)
	if !ok {
		return proposal.Dead, proposal.InvalidAction
	}

	primaryAlive := pc.Primary != "" && v.IsAlive(pc.Primary)

	var liveSecondaries, deadSecondaries []ids.NodeID
	for _, s := range pc.Secondaries {
		if v.IsAlive(s) {
			liveSecondaries = append(liveSecondaries, s)
		} else {
			deadSecondaries = append(deadSecondaries, s)
		}
	}

	maxReplicas := e.Config.MaxReplicaCount
	if maxReplicas < 1 {
		maxReplicas = config.DefaultMaxReplicaCount
	}
	wantSecondaries := maxReplicas - 1

	if !primaryAlive {
		// P1: no (live) primary, but some secondary is alive.
		if len(liveSecondaries) > 0 {
			return proposal.Ill, e.pickPrimaryFromSecondaries(pid, liveSecondaries)
		}

		// P4: no primary, no live secondaries — attempt DDD recovery.
		return e.recoverFromDDD(v, pc, cc, pid, maxReplicas)
	}

	// Primary is alive from here on.

	// P3 (dead-member half): a dead secondary is still listed.
	if len(deadSecondaries) > 0 {
		return proposal.Ill, proposal.Action{
			Target: pc.Primary,
			Node:   pickDeterministic(deadSecondaries),
			Type:   proposal.Remove,
		}
	}

	// P2: has primary, fewer than wantSecondaries live secondaries.
	if len(liveSecondaries) < wantSecondaries {
		node, ok := e.pickSecondaryCandidate(v, pc, cc)
		if !ok {
			return proposal.Ill, proposal.InvalidAction
		}
		return proposal.Ill, proposal.Action{Target: pc.Primary, Node: node, Type: proposal.AddSecondary}
	}

	// P3 (excess half): more live secondaries than wanted.
	if len(liveSecondaries) > wantSecondaries {
		return proposal.Ill, proposal.Action{
			Target: pc.Primary,
			Node:   e.pickExcessSecondary(v, liveSecondaries),
			Type:   proposal.Remove,
		}
	}

	return proposal.Healthy, proposal.InvalidAction
}

// pickPrimaryFromSecondaries implements the P1 tie-break: highest last-known
// ballot, then highest last_committed_decree, then deterministic node
// ordering.
func (e *CureEngine) pickPrimaryFromSecondaries(pid ids.GPID, candidates []ids.NodeID) proposal.Action {
	best := candidates[0]
	bestInfo, bestKnown := e.collected(best, pid)

	for _, cand := range candidates[1:] {
		info, known := e.collected(cand, pid)
		if betterPrimaryCandidate(cand, info, known, best, bestInfo, bestKnown) {
			best, bestInfo, bestKnown = cand, info, known
		}
	}

	return proposal.Action{Target: best, Node: best, Type: proposal.UpgradeToPrimary}
}

func (e *CureEngine) collected(node ids.NodeID, pid ids.GPID) (liveness.ReplicaInfo, bool) {
	if e.Collector == nil {
		return liveness.ReplicaInfo{Ballot: -1, LastCommittedDecree: -1}, false
	}
	info, ok := e.Collector.Collected(node, pid)
	if !ok {
		return liveness.ReplicaInfo{Ballot: -1, LastCommittedDecree: -1}, false
	}
	return info, true
}

// betterPrimaryCandidate reports whether candidate beats current under the
// P1 tie-break order: ballot, then committed decree, then node id.
func betterPrimaryCandidate(cand ids.NodeID, candInfo liveness.ReplicaInfo, candKnown bool, cur ids.NodeID, curInfo liveness.ReplicaInfo, curKnown bool) bool {
	if candInfo.Ballot != curInfo.Ballot {
		return candInfo.Ballot > curInfo.Ballot
	}
	if candInfo.LastCommittedDecree != curInfo.LastCommittedDecree {
		return candInfo.LastCommittedDecree > curInfo.LastCommittedDecree
	}
	return cand < cur
}

// pickSecondaryCandidate implements P2: the primary's target for
// ADD_SECONDARY is the live non-member that minimizes (partition_count,
// primary_count), preferring, among ties, candidates with recent/complete
// dropped-history metadata, then breaking remaining ties by node id.
func (e *CureEngine) pickSecondaryCandidate(v *view.View, pc *partition.Config, cc *partition.ConfigContext) (ids.NodeID, bool) {
	type candidate struct {
		node           ids.NodeID
		partitionCount int
		primaryCount   int
		hasHistory     bool
	}

	var candidates []candidate
	for node, ns := range v.Nodes {
		if !ns.Alive || pc.IsMember(node) {
			continue
		}
		_, hasHistory := droppedRecordFor(cc, node)
		candidates = append(candidates, candidate{
			node:           node,
			partitionCount: ns.PartitionCount,
			primaryCount:   ns.PrimaryCount,
			hasHistory:     hasHistory && func() bool { d, _ := droppedRecordFor(cc, node); return d.Collected() }(),
		})
	}

	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.partitionCount != b.partitionCount {
			return a.partitionCount < b.partitionCount
		}
		if a.primaryCount != b.primaryCount {
			return a.primaryCount < b.primaryCount
		}
		if a.hasHistory != b.hasHistory {
			return a.hasHistory
		}
		return a.node < b.node
	})

	return candidates[0].node, true
}

// pickExcessSecondary implements the removal half of P3 when a partition
// has more live secondaries than wanted: it removes from the most-loaded
// node, preserving the load invariant from spec.md §4.4.
func (e *CureEngine) pickExcessSecondary(v *view.View, candidates []ids.NodeID) ids.NodeID {
	best := candidates[0]
	bestNS := v.Node(best)

	for _, cand := range candidates[1:] {
		ns := v.Node(cand)
		if moreLoaded(cand, ns, best, bestNS) {
			best, bestNS = cand, ns
		}
	}

	return best
}

func moreLoaded(cand ids.NodeID, candNS *view.NodeState, cur ids.NodeID, curNS *view.NodeState) bool {
	if candNS.PartitionCount != curNS.PartitionCount {
		return candNS.PartitionCount > curNS.PartitionCount
	}
	if candNS.PrimaryCount != curNS.PrimaryCount {
		return candNS.PrimaryCount > curNS.PrimaryCount
	}
	return cand < cur
}

// pickDeterministic breaks ties among otherwise-equivalent dead members by
// lexicographic node id, matching the final fallback spec.md's open
// questions settle on.
func pickDeterministic(nodes []ids.NodeID) ids.NodeID {
	best := nodes[0]
	for _, n := range nodes[1:] {
		if n < best {
			best = n
		}
	}
	return best
}

func droppedRecordFor(cc *partition.ConfigContext, node ids.NodeID) (partition.DroppedReplica, bool) {
	idx := cc.DroppedIndex(node)
	if idx < 0 {
		return partition.DroppedReplica{}, false
	}
	return cc.Dropped[idx], true
}
