package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/logging"
	"github.com/replicated-store/guardian/metrics"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// Driver owns the tick loop: on each interval it evaluates every partition
// exactly once, applying at most one accepted action per partition per
// tick, matching spec.md §5's "one decision per partition per tick" rule.
type Driver struct {
	View      *view.View
	Validator *guardian.Validator
	Cure      *guardian.CureEngine
	Applier   proposal.Applier
	Oracle    liveness.Oracle

	shardCount int
	interval   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New builds a Driver from cfg. It does not wire the applier back to the
// driver: callers set the concrete applier's OnApply hook to
// ApplyReconfigure themselves. oracle may be
// nil, in which case the driver never touches a node's liveness flag itself
// and relies entirely on whatever already set it (tests, typically).
func New(v *view.View, validator *guardian.Validator, cure *guardian.CureEngine, app proposal.Applier, oracle liveness.Oracle, cfg config.GuardianConfig) *Driver {
	guardian.SetDropBound(cfg.DropHistoryBound)

	interval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil || interval <= 0 {
		interval = 10 * time.Second
	}

	return &Driver{
		View:       v,
		Validator:  validator,
		Cure:       cure,
		Applier:    app,
		Oracle:     oracle,
		shardCount: cfg.ShardCount,
		interval:   interval,
	}
}

// Start runs the tick loop until ctx is cancelled. It is idempotent; a
// second call while already running is a no-op.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Tick(ctx)
		case <-ctx.Done():
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		}
	}
}

// Stop halts the loop started by Start.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Tick walks every known partition once, sharding the work across
// goroutines so no single slow partition blocks the rest.
func (d *Driver) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	d.refreshLiveness()

	shardCount := d.shardCount
	if shardCount <= 0 {
		shardCount = 1
	}

	buckets := make([][]ids.GPID, shardCount)
	for appID, app := range d.View.Apps {
		for i := range app.Partitions {
			pid := ids.GPID{AppID: appID, Index: i}
			s := shardFor(pid, shardCount)
			buckets[s] = append(buckets[s], pid)
		}
	}

	var wg sync.WaitGroup
	for _, bucket := range buckets {
		bucket := bucket
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, pid := range bucket {
				d.evaluate(ctx, pid)
			}
		}()
	}
	wg.Wait()
}

// refreshLiveness pulls a fresh reading from Oracle for every node the view
// already knows plus every node Oracle itself can name, the way spec.md §4.5
// expects liveness to be re-evaluated at the start of every tick rather than
// trusted from whenever it was last written.
func (d *Driver) refreshLiveness() {
	if d.Oracle == nil {
		return
	}

	known := make(map[ids.NodeID]struct{}, len(d.View.Nodes))
	for node := range d.View.Nodes {
		known[node] = struct{}{}
	}
	if enum, ok := d.Oracle.(liveness.KnownNodes); ok {
		for _, node := range enum.KnownNodes() {
			known[node] = struct{}{}
		}
	}

	for node := range known {
		d.View.Node(node).Alive = d.Oracle.IsAlive(node)
	}
}

// evaluate runs the from-proposals/cure decision for one partition and,
// if either path produced an action, hands it to the applier.
func (d *Driver) evaluate(ctx context.Context, pid ids.GPID) {
	if action, ok := d.Validator.FromProposals(d.View, pid); ok {
		d.dispatch(ctx, pid, action)
		return
	}

	status, action := d.Cure.Cure(d.View, pid)
	metrics.CureStatus.WithLabelValues(status.String()).Inc()

	if action == proposal.InvalidAction {
		if status == proposal.Dead {
			metrics.DDDRefusals.WithLabelValues("no_safe_candidate").Inc()
		}
		return
	}

	d.dispatch(ctx, pid, action)
}

func (d *Driver) dispatch(ctx context.Context, pid ids.GPID, action proposal.Action) {
	metrics.ProposalsEmitted.WithLabelValues(action.Type.String()).Inc()

	if err := d.Applier.SendProposal(ctx, action.Target, pid, action); err != nil {
		logging.Log.Warningf("driver: send proposal for %s failed: %v", pid, err)
	}
}

// ApplyReconfigure folds a settled action back into the view. Concrete
// appliers call this (directly or via their OnApply hook) once the cluster
// confirms the change. An ErrInvariantViolation from Reconfigure is logged
// as fatal and exits the process.
func (d *Driver) ApplyReconfigure(pid ids.GPID, action proposal.Action, newBallot int64) {
	if err := guardian.Reconfigure(d.View, pid, action, newBallot); err != nil {
		if errors.Is(err, guardian.ErrInvariantViolation) {
			logging.Log.Fatalf("driver: reconfigure for %s violated an invariant: %v", pid, err)
		}
		logging.Log.Errorf("driver: reconfigure for %s failed: %v", pid, err)
	}
}
