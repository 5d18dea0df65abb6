package driver_test

import (
	"context"
	"fmt"

	"github.com/replicated-store/guardian/applier"
	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/driver"
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/view"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	convergenceNodeCount      = 20
	convergencePartitionCount = 1024
)

// This drives the load invariant from spec.md §4.4 end to end: seed a
// primary-only cluster, run ticks until the driver stops emitting anything,
// and check that primary/partition counts across nodes never spread by more
// than one.
var _ = Describe("load invariant convergence", func() {
	It("settles every node's primary and partition count within 1 of each other", func() {
		v := view.New()
		app := v.AddApp(1, convergencePartitionCount)

		nodes := make([]ids.NodeID, convergenceNodeCount)
		for i := range nodes {
			nodes[i] = ids.NodeID(fmt.Sprintf("n%d", i))
			v.Node(nodes[i]).Alive = true
		}

		// A round-robin primary assignment stands in for whatever bootstraps
		// a brand-new app; Cure never invents a primary out of nothing, so
		// the guardian itself is never responsible for this first step.
		for i, pc := range app.Partitions {
			node := nodes[i%len(nodes)]
			pc.Primary = node
			ns := v.Node(node)
			ns.PrimaryCount++
			ns.PartitionCount++
		}

		tracker := liveness.NewHeartbeatTracker(0)
		for _, n := range nodes {
			tracker.Heartbeat(n)
		}

		appl := applier.NewInMemory()
		cfg := config.GuardianConfig{MaxReplicaCount: 3, ShardCount: 1, DropHistoryBound: 3}
		val := &guardian.Validator{Collector: tracker}
		cure := &guardian.CureEngine{Config: cfg, Collector: tracker}
		drv := driver.New(v, val, cure, appl, tracker, cfg)
		appl.OnApply = drv.ApplyReconfigure

		ctx := context.Background()
		converged := false
		for i := 0; i < 200; i++ {
			before := len(appl.Sent())
			drv.Tick(ctx)
			if len(appl.Sent()) == before {
				converged = true
				break
			}
		}
		Expect(converged).To(BeTrue())

		minPrimary, maxPrimary := 1<<30, 0
		minPartition, maxPartition := 1<<30, 0
		for _, n := range nodes {
			ns := v.Node(n)
			if ns.PrimaryCount < minPrimary {
				minPrimary = ns.PrimaryCount
			}
			if ns.PrimaryCount > maxPrimary {
				maxPrimary = ns.PrimaryCount
			}
			if ns.PartitionCount < minPartition {
				minPartition = ns.PartitionCount
			}
			if ns.PartitionCount > maxPartition {
				maxPartition = ns.PartitionCount
			}
		}

		Expect(maxPrimary - minPrimary).To(BeNumerically("<=", 1))
		Expect(maxPartition - minPartition).To(BeNumerically("<=", 1))
	})
})
