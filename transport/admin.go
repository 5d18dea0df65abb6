package transport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/partition"
	"github.com/replicated-store/guardian/view"
)

// partitionView is the admin API's read-only rendering of one partition,
// deliberately flatter than partition.Config so it serializes cleanly.
type partitionView struct {
	GPID                string   `json:"gpid"`
	Ballot              int64    `json:"ballot"`
	Primary             string   `json:"primary"`
	Secondaries         []string `json:"secondaries"`
	LastCommittedDecree int64    `json:"last_committed_decree"`
}

type nodeView struct {
	Node           string `json:"node"`
	Alive          bool   `json:"alive"`
	PrimaryCount   int    `json:"primary_count"`
	PartitionCount int    `json:"partition_count"`
}

// NewAdminRouter builds a read-only gin.Engine exposing the current view
// for operator tooling (the cmd/guardian status subcommand included). It is
// a distinct HTTP surface from Server's gorilla/mux router: proposal/raft
// traffic and admin introspection are kept on separate listeners the way
// SPEC_FULL.md's transport section calls for.
func NewAdminRouter(v *view.View) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/apps/:appID/partitions", func(c *gin.Context) {
		appID, err := strconv.ParseInt(c.Param("appID"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appID"})
			return
		}

		app, ok := v.Apps[ids.AppID(appID)]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such app"})
			return
		}

		partitions := make([]partitionView, 0, len(app.Partitions))
		for _, pc := range app.Partitions {
			partitions = append(partitions, toPartitionView(pc))
		}

		c.JSON(http.StatusOK, partitions)
	})

	r.GET("/nodes", func(c *gin.Context) {
		nodes := make([]nodeView, 0, len(v.Nodes))
		for id, ns := range v.Nodes {
			nodes = append(nodes, nodeView{
				Node:           string(id),
				Alive:          ns.Alive,
				PrimaryCount:   ns.PrimaryCount,
				PartitionCount: ns.PartitionCount,
			})
		}
		c.JSON(http.StatusOK, nodes)
	})

	return r
}

func toPartitionView(pc *partition.Config) partitionView {
	secondaries := make([]string, len(pc.Secondaries))
	for i, s := range pc.Secondaries {
		secondaries[i] = string(s)
	}
	return partitionView{
		GPID:                pc.GPID.String(),
		Ballot:              pc.Ballot,
		Primary:             string(pc.Primary),
		Secondaries:         secondaries,
		LastCommittedDecree: pc.LastCommittedDecree,
	}
}
