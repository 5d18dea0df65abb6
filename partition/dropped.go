package partition

import "github.com/replicated-store/guardian/ids"

// InvalidTimestamp marks a DroppedReplica whose node is either still a
// member or whose drop time is simply unknown. It carries no meaning beyond
// "not a real drop time" — it must never be compared as if it were one.
const InvalidTimestamp int64 = -1

// NotCollected marks a ballot/decree field on a DroppedReplica whose
// metadata has not yet been collected from the node after a restart.
const NotCollected int64 = -1

// DroppedReplica remembers a node that used to hold a partition replica:
// when it dropped (or InvalidTimestamp if unknown/still present), and the
// last ballot/decrees it reported before dropping. Ballot == NotCollected
// means the node's metadata has not been collected since it last restarted,
// regardless of DropTime.
type DroppedReplica struct {
	Node                ids.NodeID
	DropTime            int64
	Ballot              int64
	LastCommittedDecree int64
	LastPreparedDecree  int64
}

// Collected reports whether this record carries real ballot/decree
// metadata, as opposed to a placeholder inserted before the node reported
// anything.
func (d DroppedReplica) Collected() bool {
	return d.Ballot >= 0
}
