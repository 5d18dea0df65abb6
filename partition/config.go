// Package partition holds the per-partition data model the guardian reasons
// over: the current replica-group configuration, its dropped-replica
// history, and the queue of externally-planned actions awaiting validation.
package partition

import (
	"errors"

	"github.com/replicated-store/guardian/ids"
)

// ErrInvalidConfig is returned by Config.Validate when primary/secondary
// membership is inconsistent.
var ErrInvalidConfig = errors.New("partition: primary/secondary membership invariant violated")

// Config is one partition's replica-group configuration: identity, the
// current ballot, the primary (if any), the ordered secondaries, the ordered
// former-member history, and the meta's floor on committed log position.
//
// Invariant: Primary, if non-empty, does not appear in Secondaries; no node
// appears twice across {Primary} ∪ Secondaries.
type Config struct {
	GPID                ids.GPID
	Ballot              int64
	Primary             ids.NodeID
	Secondaries         []ids.NodeID
	LastDrops           []ids.NodeID
	LastCommittedDecree int64
}

// Validate checks the primary/secondary membership invariant.
func (c *Config) Validate() error {
	seen := make(map[ids.NodeID]bool, len(c.Secondaries)+1)
	if c.Primary != "" {
		seen[c.Primary] = true
	}
	for _, s := range c.Secondaries {
		if seen[s] {
			return ErrInvalidConfig
		}
		seen[s] = true
	}
	return nil
}

// IsMember reports whether node is the current primary or a secondary.
func (c *Config) IsMember(node ids.NodeID) bool {
	if node == "" {
		return false
	}
	if c.Primary == node {
		return true
	}
	for _, s := range c.Secondaries {
		if s == node {
			return true
		}
	}
	return false
}

// IsSecondary reports whether node is currently a secondary (not primary).
func (c *Config) IsSecondary(node ids.NodeID) bool {
	for _, s := range c.Secondaries {
		if s == node {
			return true
		}
	}
	return false
}

// RemoveSecondary removes node from Secondaries if present, reporting
// whether it was found.
func (c *Config) RemoveSecondary(node ids.NodeID) bool {
	for i, s := range c.Secondaries {
		if s == node {
			c.Secondaries = append(c.Secondaries[:i], c.Secondaries[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used by guardian.Reconfigure to keep the
// pre-image it diffs load counters against and restores on failure, so the
// mutated post-image never aliases it.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Secondaries = append([]ids.NodeID(nil), c.Secondaries...)
	clone.LastDrops = append([]ids.NodeID(nil), c.LastDrops...)
	return &clone
}
