package guardian_test

import (
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reconfigure", func() {
	It("promotes a secondary to primary and clears its dropped history", func() {
		v := newSingleView(1)
		pc, cc, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		pc.Secondaries = []ids.NodeID{"n1"}
		cc.Dropped = []partition.DroppedReplica{{Node: "n1", Ballot: 2}}
		alive(v, "n0", "n1")
		// Load counters match the membership above.
		v.Node("n0").PrimaryCount, v.Node("n0").PartitionCount = 1, 1
		v.Node("n1").PartitionCount = 1

		err := guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n1", Node: "n1", Type: proposal.UpgradeToPrimary}, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(pc.Primary).To(Equal(ids.NodeID("n1")))
		Expect(pc.Secondaries).To(BeEmpty())
		Expect(pc.Ballot).To(Equal(int64(7)))
		Expect(cc.DroppedIndex("n1")).To(Equal(-1))
	})

	It("removes a node, drops its load, and records its departure in history", func() {
		v := newSingleView(1)
		pc, cc, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		pc.Secondaries = []ids.NodeID{"n1"}
		alive(v, "n0", "n1")
		// Load counters match the membership above.
		v.Node("n0").PrimaryCount, v.Node("n0").PartitionCount = 1, 1
		v.Node("n1").PartitionCount = 1

		err := guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n0", Node: "n1", Type: proposal.Remove}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(pc.Secondaries).To(BeEmpty())
		Expect(cc.DroppedIndex("n1")).To(BeNumerically(">=", 0))
		Expect(pc.LastDrops).To(ContainElement(ids.NodeID("n1")))
	})

	It("maintains primary/partition counters across an add then a remove", func() {
		v := newSingleView(1)
		pc, _, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		alive(v, "n0", "n1")

		Expect(guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n0", Node: "n1", Type: proposal.AddSecondary}, 3)).To(Succeed())
		Expect(v.Node("n1").PartitionCount).To(Equal(1))
		Expect(v.Node("n1").PrimaryCount).To(Equal(0))

		Expect(guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n0", Node: "n1", Type: proposal.Remove}, 4)).To(Succeed())
		Expect(v.Node("n1").PartitionCount).To(Equal(0))
	})

	It("does not mark a removed node alive again", func() {
		v := newSingleView(1)
		pc, _, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		pc.Secondaries = []ids.NodeID{"n1"}
		alive(v, "n0")
		v.Node("n1").Alive = false
		// Load counters match the membership above.
		v.Node("n0").PrimaryCount, v.Node("n0").PartitionCount = 1, 1
		v.Node("n1").PartitionCount = 1

		err := guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n0", Node: "n1", Type: proposal.DowngradeToInactive}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(v.Node("n1").Alive).To(BeFalse())
	})

	It("marks a newly added node alive", func() {
		v := newSingleView(1)
		pc, _, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		alive(v, "n0")

		err := guardian.Reconfigure(v, gpid(0), proposal.Action{Target: "n0", Node: "n1", Type: proposal.AddSecondary}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(v.Node("n1").Alive).To(BeTrue())
	})

	It("rejects an unknown partition", func() {
		v := newSingleView(1)
		err := guardian.Reconfigure(v, ids.GPID{AppID: testApp, Index: 99}, proposal.Action{Target: "n0", Node: "n1", Type: proposal.Remove}, 1)
		Expect(err).To(MatchError(guardian.ErrUnknownPartition))
	})
})
