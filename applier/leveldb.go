package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	levelerrors "github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/logging"
	"github.com/replicated-store/guardian/metrics"
	"github.com/replicated-store/guardian/proposal"
)

// record is what LevelDB persists per applied action, keyed by partition
// and an incrementing sequence number so the store doubles as an audit log
// of every reconfiguration a partition has gone through.
type record struct {
	Action    proposal.Action `json:"action"`
	NewBallot int64           `json:"new_ballot"`
}

// LevelDB is a proposal.Applier that durably logs every accepted action
// before invoking the caller's apply callback, the way a production
// applier would log to its replicated state machine. It is a demo-scale
// reference, not a clustered store: one process, one file.
type LevelDB struct {
	mu      sync.Mutex
	db      *leveldb.DB
	path    string
	seq     map[ids.GPID]uint64
	OnApply func(pid ids.GPID, action proposal.Action, newBallot int64)
}

// NewLevelDB opens (or creates) the database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("open", "leveldb").Inc()
		if levelerrors.IsCorrupted(err) {
			logging.Log.Criticalf("applier: leveldb store at %s is corrupted: %v", path, err)
		}
		return nil, err
	}

	return &LevelDB{db: db, path: path, seq: make(map[ids.GPID]uint64)}, nil
}

// Close releases the underlying database handle.
func (a *LevelDB) Close() error {
	return a.db.Close()
}

// SendProposal implements proposal.Applier: it persists the action,
// assigns the next ballot, and invokes OnApplied.
func (a *LevelDB) SendProposal(ctx context.Context, target ids.NodeID, pid ids.GPID, action proposal.Action) error {
	a.mu.Lock()
	a.seq[pid]++
	seq := a.seq[pid]
	newBallot := int64(seq)
	a.mu.Unlock()

	payload, err := json.Marshal(record{Action: action, NewBallot: newBallot})
	if err != nil {
		return err
	}

	key := []byte(fmt.Sprintf("%s/%020d", pid.String(), seq))
	if err := a.db.Put(key, payload, nil); err != nil {
		metrics.StorageErrors.WithLabelValues("put", "leveldb").Inc()
		return err
	}

	a.OnApplied(pid, action, newBallot)
	return nil
}

// OnApplied implements proposal.Applier.
func (a *LevelDB) OnApplied(pid ids.GPID, action proposal.Action, newBallot int64) {
	if a.OnApply != nil {
		a.OnApply(pid, action, newBallot)
	}
}
