// Package view defines the read-only cluster snapshot the guardian decides
// over: which apps exist, how their partitions are currently configured, and
// which nodes are alive. Nothing in this package mutates cluster state; it is
// the guardian's only window onto the world.
package view

import (
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/partition"
)

// NodeState tracks liveness and per-node replica load. Counters are
// maintained exclusively by guardian.Reconfigure; nothing else should mutate
// them once a node is registered.
type NodeState struct {
	Alive             bool
	PrimaryCount      int
	PartitionCount    int
	ReplicasCollected bool
}

// AppState is one application's partition table. Partitions and Contexts are
// index-aligned: Contexts[i] is the history sidecar for Partitions[i].
type AppState struct {
	ID         ids.AppID
	Partitions []*partition.Config
	Contexts   []*partition.ConfigContext
}

// View is the guardian's sole input. The driver owns it; the guardian only
// ever borrows it for the duration of a single decision.
type View struct {
	Apps  map[ids.AppID]*AppState
	Nodes map[ids.NodeID]*NodeState
}

// New returns an empty view ready to have apps registered into it.
func New() *View {
	return &View{
		Apps:  make(map[ids.AppID]*AppState),
		Nodes: make(map[ids.NodeID]*NodeState),
	}
}

// IsAlive reports the liveness oracle's last known reading for node. An
// unregistered node is treated as dead: the guardian never picks a node it
// has never heard of.
func (v *View) IsAlive(node ids.NodeID) bool {
	ns, ok := v.Nodes[node]
	return ok && ns.Alive
}

// Partition looks up a partition's config and history by global id.
func (v *View) Partition(pid ids.GPID) (*partition.Config, *partition.ConfigContext, bool) {
	app, ok := v.Apps[pid.AppID]
	if !ok || pid.Index < 0 || pid.Index >= len(app.Partitions) {
		return nil, nil, false
	}
	return app.Partitions[pid.Index], app.Contexts[pid.Index], true
}

// Node returns the NodeState for node, registering it (as dead, uncollected)
// if it has never been seen before. The guardian's read path never needs
// this; it exists for the driver and reconfigure hook, which do legitimately
// need to create node entries as new nodes join.
func (v *View) Node(node ids.NodeID) *NodeState {
	ns, ok := v.Nodes[node]
	if !ok {
		ns = &NodeState{}
		v.Nodes[node] = ns
	}
	return ns
}

// AddApp registers an app with partitionCount empty partitions, each
// carrying a fresh ConfigContext, the way the app's creation does per
// spec.md §3 lifecycle rules.
func (v *View) AddApp(id ids.AppID, partitionCount int) *AppState {
	app := &AppState{
		ID:         id,
		Partitions: make([]*partition.Config, partitionCount),
		Contexts:   make([]*partition.ConfigContext, partitionCount),
	}
	for i := 0; i < partitionCount; i++ {
		app.Partitions[i] = &partition.Config{GPID: ids.GPID{AppID: id, Index: i}}
		app.Contexts[i] = &partition.ConfigContext{}
	}
	v.Apps[id] = app
	return app
}
