package guardian_test

import (
	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These exercise full cure -> reconfigure -> cure chains across multiple
// ticks, rather than a single isolated Cure call, matching spec.md §8's
// end-to-end scenarios.
var _ = Describe("multi-tick convergence", func() {
	var v *view.View
	var engine *guardian.CureEngine

	BeforeEach(func() {
		v = newSingleView(1)
		engine = &guardian.CureEngine{Config: config.GuardianConfig{MaxReplicaCount: 3}}
	})

	It("re-emits the identical upgrade after a dropped proposal, then settles once accepted", func() {
		pc, _, _ := v.Partition(gpid(0))
		pc.Ballot = 1
		pc.Secondaries = []ids.NodeID{"n0", "n1"}
		alive(v, "n0", "n1", "n2", "n3")

		_, first := engine.Cure(v, gpid(0))
		Expect(first.Type).To(Equal(proposal.UpgradeToPrimary))

		// The applier dropped the first proposal; nothing changed in the
		// view, so a second cure call must propose the same thing.
		_, second := engine.Cure(v, gpid(0))
		Expect(second).To(Equal(first))

		Expect(guardian.Reconfigure(v, gpid(0), second, 2)).To(Succeed())
		Expect(pc.Primary).To(Equal(second.Node))
		Expect(pc.Ballot).To(Equal(int64(2)))
	})

	It("never re-proposes a candidate that died between cure calls", func() {
		pc, _, _ := v.Partition(gpid(0))
		pc.Secondaries = []ids.NodeID{"n0", "n1"}
		alive(v, "n0", "n1", "n2", "n3")

		_, first := engine.Cure(v, gpid(0))
		Expect(first.Node).To(Equal(ids.NodeID("n0")))

		v.Node("n0").Alive = false

		_, second := engine.Cure(v, gpid(0))
		Expect(second.Node).To(Equal(ids.NodeID("n1")))
	})

	It("keeps driving toward the target secondary count across a concurrent downgrade", func() {
		pc, _, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		pc.Secondaries = []ids.NodeID{"n1"}
		pc.Ballot = 1
		alive(v, "n0", "n1", "n2", "n3")
		// Load counters match the membership above.
		v.Node("n0").PrimaryCount, v.Node("n0").PartitionCount = 1, 1
		v.Node("n1").PartitionCount = 1

		status, first := engine.Cure(v, gpid(0))
		Expect(status).To(Equal(proposal.Ill))
		Expect(first.Type).To(Equal(proposal.AddSecondary))

		// A concurrent DOWNGRADE_TO_INACTIVE for n1 lands instead of the
		// proposal cure just emitted.
		Expect(guardian.Reconfigure(v, gpid(0), proposal.Action{
			Target: "n0", Node: "n1", Type: proposal.DowngradeToInactive,
		}, 2)).To(Succeed())

		for i := 0; i < 5 && len(pc.Secondaries) < 2; i++ {
			status, action := engine.Cure(v, gpid(0))
			Expect(status).To(Equal(proposal.Ill))
			Expect(guardian.Reconfigure(v, gpid(0), action, pc.Ballot+1)).To(Succeed())
		}

		Expect(pc.Secondaries).To(HaveLen(2))
	})

	It("promotes a secondary to primary if the primary dies before an add is accepted", func() {
		pc, _, _ := v.Partition(gpid(0))
		pc.Primary = "n0"
		pc.Secondaries = []ids.NodeID{"n1"}
		alive(v, "n0", "n1", "n2")
		// Load counters match the membership above.
		v.Node("n0").PrimaryCount, v.Node("n0").PartitionCount = 1, 1
		v.Node("n1").PartitionCount = 1

		status, first := engine.Cure(v, gpid(0))
		Expect(status).To(Equal(proposal.Ill))
		Expect(first.Type).To(Equal(proposal.AddSecondary))
		// The applier drops it: no Reconfigure call follows.

		v.Node("n0").Alive = false

		status, second := engine.Cure(v, gpid(0))
		Expect(status).To(Equal(proposal.Ill))
		Expect(second.Type).To(Equal(proposal.UpgradeToPrimary))
		Expect(second.Node).To(Equal(ids.NodeID("n1")))

		Expect(guardian.Reconfigure(v, gpid(0), second, 2)).To(Succeed())
		Expect(pc.Primary).To(Equal(ids.NodeID("n1")))
	})
})
