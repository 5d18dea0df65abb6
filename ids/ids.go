// Package ids holds the identifier types shared across the guardian's data
// model (view, partition, proposal, guardian) so that none of those
// packages needs to import another just to name a node or a partition.
package ids

import "fmt"

// NodeID identifies a replica server in the cluster.
type NodeID string

// AppID identifies an application (table) owning a set of partitions.
type AppID int32

// GPID is a global partition id: an app's id plus the partition's index
// within that app's partition table.
type GPID struct {
	AppID AppID
	Index int
}

func (g GPID) String() string {
	return fmt.Sprintf("%d.%d", g.AppID, g.Index)
}
