package partition

import "github.com/replicated-store/guardian/ids"

// DropHistoryBound is the default cap on ConfigContext.Dropped before older
// entries are pruned; it is overridable via
// config.GuardianConfig.DropHistoryBound (applied by guardian.SetDropBound).
const DropHistoryBound = 3

// ConfigContext is a partition's history sidecar: the dropped-replica
// sequence DDD recovery reads, and the queue of externally-planned actions
// from-proposals validates. It is mutated only by guardian.Reconfigure and
// by whatever feeds the proposal queue (the out-of-scope balancer); the cure
// engine only ever reads it.
type ConfigContext struct {
	// Dropped is ordered most-recent-last, mirroring the source's
	// config_context::dropped.
	Dropped []DroppedReplica
	Actions ActionQueue
}

// DroppedIndex returns the index of node's most recent DroppedReplica
// record, or -1 if node has no record.
func (cc *ConfigContext) DroppedIndex(node ids.NodeID) int {
	for i := len(cc.Dropped) - 1; i >= 0; i-- {
		if cc.Dropped[i].Node == node {
			return i
		}
	}
	return -1
}

// RemoveDropped deletes node's dropped record, if any, used when a former
// member is re-promoted (ADD/UPGRADE in guardian.Reconfigure).
func (cc *ConfigContext) RemoveDropped(node ids.NodeID) {
	idx := cc.DroppedIndex(node)
	if idx < 0 {
		return
	}
	cc.Dropped = append(cc.Dropped[:idx], cc.Dropped[idx+1:]...)
}

// AppendDropped records node as freshly dropped, pruning the oldest entry
// first if the history exceeds bound.
func (cc *ConfigContext) AppendDropped(record DroppedReplica, bound int) {
	cc.RemoveDropped(record.Node)
	cc.Dropped = append(cc.Dropped, record)
	if bound <= 0 {
		bound = DropHistoryBound
	}
	for len(cc.Dropped) > bound {
		cc.Dropped = cc.Dropped[1:]
	}
}
