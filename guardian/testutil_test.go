package guardian_test

import (
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/view"
)

// fakeCollector is a map-backed liveness.Collector for tests, grounded in
// the original test suite's plain dropped-replica{node, ballot, committed,
// prepared} fixtures.
type fakeCollector map[ids.NodeID]liveness.ReplicaInfo

func (f fakeCollector) Collected(node ids.NodeID, _ ids.GPID) (liveness.ReplicaInfo, bool) {
	info, ok := f[node]
	return info, ok
}

func alive(v *view.View, nodes ...ids.NodeID) {
	for _, n := range nodes {
		v.Node(n).Alive = true
	}
}
