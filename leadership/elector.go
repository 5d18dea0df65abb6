// Package leadership decides which meta-server replica is allowed to run
// the decision core. It wraps go.etcd.io/raft/v3 with a small facade
// exposing Propose/AddReplica/RemoveReplica plus a callback-driven Ready loop,
// with the state machine itself reduced to "who is the leader" since
// nothing else about cluster membership needs to go through consensus here.
package leadership

import (
	"context"
	"sync"
	"time"

	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"github.com/replicated-store/guardian/logging"
)

// Elector runs one local raft.Node and reports whether this replica
// currently holds leadership.
type Elector struct {
	id      uint64
	node    raft.Node
	storage *raft.MemoryStorage
	peers   map[uint64]PeerAddress

	transport Transport

	mu       sync.RWMutex
	leaderID uint64

	onLeadershipChange func(isLeader bool)

	stop chan struct{}
}

// PeerAddress names a meta-server replica's id and HTTP address within the
// leadership transport.
type PeerAddress struct {
	NodeID uint64
	Host   string
	Port   int
}

// Transport is the leadership package's only collaborator: something that
// can deliver a raft message to another replica and register a receive
// callback. transport.RaftHub implements this.
type Transport interface {
	Send(ctx context.Context, msg raftpb.Message) error
	OnReceive(cb func(context.Context, raftpb.Message) error)
}

// NewElector starts a new raft group among the given peers,
// electing among them. localID must be one of peers' keys.
func NewElector(localID uint64, peers map[uint64]PeerAddress, transport Transport) *Elector {
	storage := raft.NewMemoryStorage()

	var confPeers []raft.Peer
	for id := range peers {
		confPeers = append(confPeers, raft.Peer{ID: id})
	}

	cfg := &raft.Config{
		ID:              localID,
		ElectionTick:    10,
		HeartbeatTick:   1,
		Storage:         storage,
		MaxSizePerMsg:   1024 * 1024,
		MaxInflightMsgs: 256,
	}

	e := &Elector{
		id:        localID,
		node:      raft.StartNode(cfg, confPeers),
		storage:   storage,
		peers:     peers,
		transport: transport,
		stop:      make(chan struct{}),
	}

	transport.OnReceive(e.receive)

	return e
}

// OnLeadershipChange registers a callback invoked each time this replica
// gains or loses leadership, with the new value. cmd/guardian uses this to
// start/stop the driver's tick loop.
func (e *Elector) OnLeadershipChange(cb func(isLeader bool)) {
	e.onLeadershipChange = cb
}

// IsLeader reports whether this replica believes it is currently the raft
// leader.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.leaderID == e.id
}

// Propose submits an opaque payload into the raft log. The guardian itself
// never proposes anything; this exists so the transport/admin layers can
// serialize cluster membership changes (AddReplica/RemoveReplica) through
// the same consensus group that elects the leader.
func (e *Elector) Propose(ctx context.Context, data []byte) error {
	return e.node.Propose(ctx, data)
}

// AddReplica proposes a configuration change adding nodeID to the raft
// group.
func (e *Elector) AddReplica(ctx context.Context, nodeID uint64) error {
	logging.Log.Infof("leadership: replica %d proposing addition of replica %d", e.id, nodeID)
	return e.node.ProposeConfChange(ctx, raftpb.ConfChange{
		ID:     nodeID,
		Type:   raftpb.ConfChangeAddNode,
		NodeID: nodeID,
	})
}

// RemoveReplica proposes removing nodeID from the raft group.
func (e *Elector) RemoveReplica(ctx context.Context, nodeID uint64) error {
	logging.Log.Infof("leadership: replica %d proposing removal of replica %d", e.id, nodeID)
	return e.node.ProposeConfChange(ctx, raftpb.ConfChange{
		ID:     nodeID,
		Type:   raftpb.ConfChangeRemoveNode,
		NodeID: nodeID,
	})
}

// Run drives the raft event loop until ctx is cancelled. It must run in its
// own goroutine.
func (e *Elector) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.node.Tick()

		case rd := <-e.node.Ready():
			if !raft.IsEmptyHardState(rd.HardState) {
				e.storage.SetHardState(rd.HardState)
			}
			if len(rd.Entries) > 0 {
				e.storage.Append(rd.Entries)
			}

			for _, msg := range rd.Messages {
				go func(msg raftpb.Message) {
					if err := e.transport.Send(ctx, msg); err != nil {
						logging.Log.Warningf("leadership: failed to send raft message to %d: %v", msg.To, err)
					}
				}(msg)
			}

			e.setLeader(rd.SoftState)

			for _, entry := range rd.CommittedEntries {
				if entry.Type == raftpb.EntryConfChange {
					var cc raftpb.ConfChange
					if err := cc.Unmarshal(entry.Data); err == nil {
						e.node.ApplyConfChange(cc)
					}
				}
			}

			e.node.Advance()

		case <-ctx.Done():
			e.node.Stop()
			return

		case <-e.stop:
			e.node.Stop()
			return
		}
	}
}

// Stop halts the event loop.
func (e *Elector) Stop() {
	close(e.stop)
}

func (e *Elector) setLeader(ss *raft.SoftState) {
	if ss == nil {
		return
	}

	e.mu.Lock()
	wasLeader := e.leaderID == e.id
	e.leaderID = ss.Lead
	isLeader := e.leaderID == e.id
	e.mu.Unlock()

	if wasLeader != isLeader && e.onLeadershipChange != nil {
		e.onLeadershipChange(isLeader)
	}
}

func (e *Elector) receive(ctx context.Context, msg raftpb.Message) error {
	return e.node.Step(ctx, msg)
}
