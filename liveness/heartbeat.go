package liveness

import (
	"sync"
	"time"

	"github.com/replicated-store/guardian/ids"
)

// HeartbeatTracker is a reference Oracle/Collector pair: each node's record
// carries a version (here, a timestamp) that only ever moves forward, and a
// node is alive iff its record has been touched inside the staleness window.
//
// This is a demo-grade liveness source, not a gossip protocol: a single
// process calls Heartbeat directly as it hears from peers over its own
// transport. It exists so the driver has something real to wire in without
// depending on a cluster membership system out of scope here.
type HeartbeatTracker struct {
	mu      sync.RWMutex
	staleAfter time.Duration
	nodes   map[ids.NodeID]time.Time
	replica map[replicaKey]ReplicaInfo
}

type replicaKey struct {
	node ids.NodeID
	pid  ids.GPID
}

// NewHeartbeatTracker returns a tracker that considers a node dead once
// staleAfter has elapsed since its last heartbeat. A non-positive
// staleAfter disables expiry: a node stays alive once it has sent any
// heartbeat.
func NewHeartbeatTracker(staleAfter time.Duration) *HeartbeatTracker {
	return &HeartbeatTracker{
		staleAfter: staleAfter,
		nodes:      make(map[ids.NodeID]time.Time),
		replica:    make(map[replicaKey]ReplicaInfo),
	}
}

// Heartbeat records that node was just heard from.
func (t *HeartbeatTracker) Heartbeat(node ids.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[node] = time.Now()
}

// Forget drops node's heartbeat record outright, used when a node is
// decommissioned rather than merely unreachable.
func (t *HeartbeatTracker) Forget(node ids.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, node)
}

// KnownNodes implements liveness.KnownNodes: every node that has ever
// reported a heartbeat.
func (t *HeartbeatTracker) KnownNodes() []ids.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nodes := make([]ids.NodeID, 0, len(t.nodes))
	for node := range t.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// IsAlive implements Oracle.
func (t *HeartbeatTracker) IsAlive(node ids.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last, ok := t.nodes[node]
	if !ok {
		return false
	}
	if t.staleAfter <= 0 {
		return true
	}
	return time.Since(last) < t.staleAfter
}

// ReportReplica records the ballot/decree metadata node most recently
// reported for pid, the way a meta-server's replica-info RPC response
// would feed the collector.
func (t *HeartbeatTracker) ReportReplica(node ids.NodeID, pid ids.GPID, info ReplicaInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replica[replicaKey{node, pid}] = info
}

// Collected implements Collector.
func (t *HeartbeatTracker) Collected(node ids.NodeID, pid ids.GPID) (ReplicaInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.replica[replicaKey{node, pid}]
	return info, ok
}
