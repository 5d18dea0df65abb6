package guardian

import (
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// ddCandidate pairs a dropped-history record with the liveness/collector
// facts needed to rank it.
type ddCandidate struct {
	node    ids.NodeID
	dropped partition.DroppedReplica
}

// recoverFromDDD implements spec.md §4.2's P4/DDD branch: a partition with
// no alive primary and no alive secondary either dies outright or, if a
// safe former replica can be identified from drop history, is reassigned to
// it via ASSIGN_PRIMARY.
func (e *CureEngine) recoverFromDDD(v *view.View, pc *partition.Config, cc *partition.ConfigContext, pid ids.GPID, maxReplicas int) (proposal.Status, proposal.Action) {
	if len(pc.LastDrops) == 0 {
		return proposal.Dead, proposal.InvalidAction
	}

	// Single-replica groups have no secondaries to cross-check against:
	// the most recent drop is trusted unconditionally once it's alive
	// again.
	if maxReplicas == 1 {
		last := pc.LastDrops[len(pc.LastDrops)-1]
		if v.IsAlive(last) {
			return proposal.Ill, proposal.Action{Target: last, Node: last, Type: proposal.AssignPrimary}
		}
		return proposal.Dead, proposal.InvalidAction
	}

	// Completeness: every node the drop history names for this partition
	// must have either collected metadata or a live ReplicasCollected
	// flag, or the guardian refuses to guess.
	for _, node := range pc.LastDrops {
		ns := v.Node(node)
		if ns.ReplicasCollected {
			continue
		}
		idx := cc.DroppedIndex(node)
		if idx < 0 || !cc.Dropped[idx].Collected() {
			return proposal.Dead, proposal.InvalidAction
		}
	}

	var eligible []ddCandidate
	for _, node := range pc.LastDrops {
		idx := cc.DroppedIndex(node)
		if idx < 0 {
			continue
		}
		d := cc.Dropped[idx]
		if ddEligible(v, pc, node, d) {
			eligible = append(eligible, ddCandidate{node: node, dropped: d})
		}
	}

	if len(eligible) == 0 {
		return proposal.Dead, proposal.InvalidAction
	}

	if !ddMonotone(eligible) {
		return proposal.Dead, proposal.InvalidAction
	}

	best := ddBest(eligible, pc.LastDrops)

	return proposal.Ill, proposal.Action{Target: best, Node: best, Type: proposal.AssignPrimary}
}

// ddEligible implements the per-candidate predicates: alive, metadata known,
// committed decree at or beyond the partition's floor, and internally
// consistent (ballot/committed/prepared all collected and prepared doesn't
// trail committed).
func ddEligible(v *view.View, pc *partition.Config, node ids.NodeID, d partition.DroppedReplica) bool {
	if !v.IsAlive(node) {
		return false
	}
	if !d.Collected() {
		return false
	}
	if d.LastCommittedDecree < pc.LastCommittedDecree {
		return false
	}
	if d.LastCommittedDecree < 0 || d.LastPreparedDecree < d.LastCommittedDecree {
		return false
	}
	return true
}

// ddMonotone enforces that no two eligible candidates disagree about the
// ballot/decree ordering: a strictly larger ballot must carry a committed
// decree that is at least as large, never smaller. A single inconsistent
// pair means the history can't be trusted, so the whole partition goes
// Dead rather than guess.
func ddMonotone(candidates []ddCandidate) bool {
	for i := range candidates {
		for j := range candidates {
			if i == j {
				continue
			}
			a, b := candidates[i].dropped, candidates[j].dropped
			if a.Ballot > b.Ballot && a.LastCommittedDecree < b.LastCommittedDecree {
				return false
			}
		}
	}
	return true
}

// ddBest ranks eligible candidates by highest ballot, then highest
// committed decree, then highest prepared decree, then most-recent position
// in lastDrops, then lexicographic node id.
func ddBest(candidates []ddCandidate, lastDrops []ids.NodeID) ids.NodeID {
	position := make(map[ids.NodeID]int, len(lastDrops))
	for i, n := range lastDrops {
		position[n] = i
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if ddBetter(cand, best, position) {
			best = cand
		}
	}
	return best.node
}

func ddBetter(cand, cur ddCandidate, position map[ids.NodeID]int) bool {
	if cand.dropped.Ballot != cur.dropped.Ballot {
		return cand.dropped.Ballot > cur.dropped.Ballot
	}
	if cand.dropped.LastCommittedDecree != cur.dropped.LastCommittedDecree {
		return cand.dropped.LastCommittedDecree > cur.dropped.LastCommittedDecree
	}
	if cand.dropped.LastPreparedDecree != cur.dropped.LastPreparedDecree {
		return cand.dropped.LastPreparedDecree > cur.dropped.LastPreparedDecree
	}
	if position[cand.node] != position[cur.node] {
		return position[cand.node] > position[cur.node]
	}
	return cand.node < cur.node
}
