// Package driver runs the guardian's tick loop: on a fixed interval it
// walks every partition, exactly once, across a fixed number of shards so
// that work for unrelated partitions never serializes behind a single
// goroutine.
package driver

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/replicated-store/guardian/ids"
)

// shardFor assigns pid to one of shardCount shards using md5-based keying,
// the same hash a ring partitioner would use to place a record, applied
// here to partition identity instead.
func shardFor(pid ids.GPID, shardCount int) int {
	if shardCount <= 0 {
		shardCount = 1
	}
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(pid.AppID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(pid.Index))
	sum := md5.Sum(buf[:])
	h := binary.BigEndian.Uint64(sum[0:8])
	return int(h % uint64(shardCount))
}
