package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/logging"
	"github.com/replicated-store/guardian/proposal"
	"github.com/replicated-store/guardian/view"
)

// plannedAction is the wire shape an external balancer posts to enqueue a
// planned action for guardian.Validator to later accept or reject.
type plannedAction struct {
	Target string `json:"target"`
	Node   string `json:"node"`
	Type   string `json:"type"`
}

var actionTypesByName = map[string]proposal.ActionType{
	"ASSIGN_PRIMARY":         proposal.AssignPrimary,
	"UPGRADE_TO_PRIMARY":     proposal.UpgradeToPrimary,
	"ADD_SECONDARY":          proposal.AddSecondary,
	"ADD_SECONDARY_FOR_LB":   proposal.AddSecondaryForLB,
	"UPGRADE_TO_SECONDARY":   proposal.UpgradeToSecondary,
	"DOWNGRADE_TO_SECONDARY": proposal.DowngradeToSecondary,
	"DOWNGRADE_TO_INACTIVE":  proposal.DowngradeToInactive,
	"REMOVE":                 proposal.Remove,
}

// Server wires the raft hub, the planned-action intake endpoint, and the
// operator watch feed onto a single gorilla/mux router.
type Server struct {
	View       *view.View
	Hub        *RaftHub
	Watch      *WatchFeed
	Heartbeats liveness.HeartbeatSink

	router *mux.Router
}

// NewServer builds the router. Callers pass it to http.ListenAndServe.
// heartbeats may be nil, in which case the /nodes/{node}/heartbeat endpoint
// is not registered at all.
func NewServer(v *view.View, hub *RaftHub, watch *WatchFeed, heartbeats liveness.HeartbeatSink) *Server {
	s := &Server{View: v, Hub: hub, Watch: watch, Heartbeats: heartbeats, router: mux.NewRouter()}
	s.attach()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) attach() {
	if s.Hub != nil {
		s.Hub.Attach(s.router)
	}
	if s.Watch != nil {
		s.router.HandleFunc("/watch", s.Watch.ServeHTTP)
	}
	if s.Heartbeats != nil {
		s.router.HandleFunc("/nodes/{node}/heartbeat", s.postHeartbeat).Methods(http.MethodPost)
	}

	s.router.HandleFunc("/apps/{appID}/partitions/{index}/actions", s.postAction).Methods(http.MethodPost)
}

// postHeartbeat is what a replica calls periodically to keep its liveness
// reading fresh; the driver's next tick picks it up via Oracle.IsAlive.
func (s *Server) postHeartbeat(w http.ResponseWriter, r *http.Request) {
	node := mux.Vars(r)["node"]
	if node == "" {
		writeError(w, http.StatusBadRequest, "missing node")
		return
	}
	s.Heartbeats.Heartbeat(ids.NodeID(node))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	appID, err := strconv.ParseInt(mux.Vars(r)["appID"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appID")
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid partition index")
		return
	}

	var body plannedAction
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logging.Log.Warningf("POST actions: unable to parse body: %v", err)
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	actionType, ok := actionTypesByName[body.Type]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action type")
		return
	}

	pid := ids.GPID{AppID: ids.AppID(appID), Index: index}
	_, cc, ok := s.View.Partition(pid)
	if !ok {
		writeError(w, http.StatusNotFound, "no such partition")
		return
	}

	cc.Actions.Push(proposal.Action{
		Target: ids.NodeID(body.Target),
		Node:   ids.NodeID(body.Node),
		Type:   actionType,
	})

	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":"`+message+`"}`)
}
