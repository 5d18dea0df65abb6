// Package liveness defines the two consumed-input contracts spec.md §6
// names: a liveness oracle and a replica-info collector. The guardian
// package depends only on these interfaces, never on a concrete
// implementation — tests supply fakes, the demo binary wires in
// HeartbeatTracker.
package liveness

import "github.com/replicated-store/guardian/ids"

// Oracle answers whether a node is currently believed alive. Readings may
// be stale; the guardian tolerates that by re-deciding every tick.
type Oracle interface {
	IsAlive(node ids.NodeID) bool
}

// ReplicaStatus mirrors the subset of the source's partition_status enum
// the guardian's from-proposals validator inspects.
type ReplicaStatus int

const (
	StatusUnknown ReplicaStatus = iota
	StatusPotentialSecondary
	StatusError
)

// ReplicaInfo is what a Collector last heard a node report about its copy
// of a given partition.
type ReplicaInfo struct {
	Status              ReplicaStatus
	Ballot              int64
	LastCommittedDecree int64
	LastPreparedDecree  int64
}

// Collector answers what the most recently collected ReplicaInfo for a
// given node's copy of a given partition is, if any has ever been
// collected.
type Collector interface {
	Collected(node ids.NodeID, pid ids.GPID) (ReplicaInfo, bool)
}

// HeartbeatSink accepts liveness reports from a transport-level heartbeat
// handler. Separate from Oracle because reading liveness and reporting it
// are different callers' concerns.
type HeartbeatSink interface {
	Heartbeat(node ids.NodeID)
}

// KnownNodes is implemented by Oracles that can enumerate every node they
// hold an opinion about, so a caller can refresh liveness for nodes it has
// never itself seen named in a partition yet.
type KnownNodes interface {
	KnownNodes() []ids.NodeID
}
