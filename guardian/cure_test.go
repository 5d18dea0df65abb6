package guardian_test

import (
	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testApp ids.AppID = 1

func gpid(i int) ids.GPID { return ids.GPID{AppID: testApp, Index: i} }

func newSingleView(partitionCount int) *view.View {
	v := view.New()
	v.AddApp(testApp, partitionCount)
	return v
}

var _ = Describe("CureEngine", func() {
	var v *view.View
	var engine *guardian.CureEngine
	var collector fakeCollector

	BeforeEach(func() {
		v = newSingleView(1)
		collector = fakeCollector{}
		engine = &guardian.CureEngine{
			Config:    config.GuardianConfig{MaxReplicaCount: 3},
			Collector: collector,
		}
	})

	Context("primary alive, secondary set exactly matches target size", func() {
		It("reports Healthy and proposes nothing", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1", "n2"}
			alive(v, "n0", "n1", "n2")

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Healthy))
			Expect(action).To(Equal(proposal.InvalidAction))
		})
	})

	Context("primary alive, one dead secondary", func() {
		It("proposes REMOVE against the dead secondary before anything else", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1", "n2"}
			alive(v, "n0", "n1")
			// n2 stays dead.

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n0", Node: "n2", Type: proposal.Remove}))
		})
	})

	Context("primary alive, secondary count below target", func() {
		It("proposes ADD_SECONDARY to the least-loaded live non-member", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1"}
			alive(v, "n0", "n1", "n2", "n3")
			v.Node("n3").PartitionCount = 5
			v.Node("n2").PartitionCount = 1

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n0", Node: "n2", Type: proposal.AddSecondary}))
		})
	})

	Context("primary alive, more live secondaries than target", func() {
		It("proposes REMOVE against the most-loaded secondary", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1", "n2", "n3"}
			alive(v, "n0", "n1", "n2", "n3")
			v.Node("n3").PartitionCount = 9

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n0", Node: "n3", Type: proposal.Remove}))
		})
	})

	Context("no live primary but a live secondary exists", func() {
		It("proposes UPGRADE_TO_PRIMARY for the secondary with the highest reported ballot", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1", "n2"}
			alive(v, "n1", "n2")
			collector["n1"] = fakeInfo(5, 10, 10)
			collector["n2"] = fakeInfo(7, 3, 3)

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n2", Node: "n2", Type: proposal.UpgradeToPrimary}))
		})

		It("breaks a ballot tie by highest committed decree", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = []ids.NodeID{"n1", "n2"}
			alive(v, "n1", "n2")
			collector["n1"] = fakeInfo(5, 10, 10)
			collector["n2"] = fakeInfo(5, 20, 20)

			_, action := engine.Cure(v, gpid(0))

			Expect(action.Node).To(Equal(ids.NodeID("n2")))
		})
	})

	Context("no primary, no live secondary, last_drops empty", func() {
		It("reports Dead and proposes nothing", func() {
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.Secondaries = nil

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Dead))
			Expect(action).To(Equal(proposal.InvalidAction))
		})
	})

	Context("DDD recovery: single ballot, consistent decrees across candidates", func() {
		It("picks the highest-ballot, highest-committed-decree candidate as new primary", func() {
			pc, cc, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.LastDrops = []ids.NodeID{"n2", "n1"}
			pc.LastCommittedDecree = 2
			alive(v, "n1", "n2")

			cc.Dropped = []partition.DroppedReplica{
				{Node: "n2", DropTime: partition.InvalidTimestamp, Ballot: 4, LastCommittedDecree: 2, LastPreparedDecree: 4},
				{Node: "n1", DropTime: partition.InvalidTimestamp, Ballot: 4, LastCommittedDecree: 3, LastPreparedDecree: 4},
			}

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n1", Node: "n1", Type: proposal.AssignPrimary}))
		})
	})

	Context("DDD recovery: larger ballot does not carry larger committed decree", func() {
		It("refuses to guess and reports Dead", func() {
			pc, cc, _ := v.Partition(gpid(0))
			// n0 is a former member listed in last_drops, not the current primary.
			pc.Primary = ""
			pc.LastDrops = []ids.NodeID{"n0", "n1", "n2"}
			alive(v, "n0", "n1", "n2")

			cc.Dropped = []partition.DroppedReplica{
				{Node: "n0", Ballot: 1, LastCommittedDecree: 1, LastPreparedDecree: 1},
				{Node: "n1", Ballot: 1, LastCommittedDecree: 0, LastPreparedDecree: 1},
				{Node: "n2", Ballot: 0, LastCommittedDecree: 1, LastPreparedDecree: 1},
			}

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Dead))
			Expect(action).To(Equal(proposal.InvalidAction))
		})
	})

	Context("DDD recovery: every candidate's committed decree trails the meta's floor", func() {
		It("reports Dead", func() {
			pc, cc, _ := v.Partition(gpid(0))
			// n0 is a former member listed in last_drops, not the current primary.
			pc.Primary = ""
			pc.LastDrops = []ids.NodeID{"n0", "n1", "n2"}
			pc.LastCommittedDecree = 30
			alive(v, "n0", "n1", "n2")

			cc.Dropped = []partition.DroppedReplica{
				{Node: "n0", Ballot: 1, LastCommittedDecree: 1, LastPreparedDecree: 1},
				{Node: "n1", Ballot: 1, LastCommittedDecree: 10, LastPreparedDecree: 15},
				{Node: "n2", Ballot: 1, LastCommittedDecree: 15, LastPreparedDecree: 15},
			}

			status, _ := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Dead))
		})
	})

	Context("DDD recovery: a last_drops member has no collected metadata and isn't flagged collected", func() {
		It("refuses to guess and reports Dead", func() {
			pc, cc, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.LastDrops = []ids.NodeID{"n1", "n2"}
			alive(v, "n1", "n2")

			cc.Dropped = []partition.DroppedReplica{
				{Node: "n1", Ballot: 4, LastCommittedDecree: 4, LastPreparedDecree: 4},
				// n2 has no record at all and ReplicasCollected defaults false.
			}

			status, _ := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Dead))
		})
	})

	Context("single-replica group, sole last_drops member is alive", func() {
		It("proposes ASSIGN_PRIMARY unconditionally", func() {
			engine.Config.MaxReplicaCount = 1
			pc, _, _ := v.Partition(gpid(0))
			pc.Primary = "n0"
			pc.LastDrops = []ids.NodeID{"n1"}
			alive(v, "n1")

			status, action := engine.Cure(v, gpid(0))

			Expect(status).To(Equal(proposal.Ill))
			Expect(action).To(Equal(proposal.Action{Target: "n1", Node: "n1", Type: proposal.AssignPrimary}))
		})
	})
})

func fakeInfo(ballot, committed, prepared int64) liveness.ReplicaInfo {
	return liveness.ReplicaInfo{Ballot: ballot, LastCommittedDecree: committed, LastPreparedDecree: prepared}
}
