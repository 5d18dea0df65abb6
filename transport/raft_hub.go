// Package transport carries the guardian's cluster-facing traffic: raft
// messages between meta-server replicas, the operator watch feed, and the
// read-only admin API.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.etcd.io/raft/v3/raftpb"

	"github.com/replicated-store/guardian/leadership"
	"github.com/replicated-store/guardian/logging"
)

var (
	ErrSenderUnknown   = errors.New("transport: the receiver does not know who we are")
	ErrReceiverUnknown = errors.New("transport: the sender does not know the receiver")
	ErrSendTimeout     = errors.New("transport: timed out sending message to receiver")
)

const requestTimeout = 10 * time.Second

// RaftHub relays raft messages between meta-server replicas over plain
// HTTP POSTs, speaking go.etcd.io/raft/v3's wire format.
type RaftHub struct {
	mu         sync.Mutex
	peers      map[uint64]leadership.PeerAddress
	httpClient *http.Client
	onReceive  func(context.Context, raftpb.Message) error
}

// NewRaftHub returns an empty hub; peers are added via AddPeer as the
// leadership package learns about the configured replica set.
func NewRaftHub() *RaftHub {
	return &RaftHub{
		peers:      make(map[uint64]leadership.PeerAddress),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (h *RaftHub) AddPeer(addr leadership.PeerAddress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[addr.NodeID] = addr
}

func (h *RaftHub) RemovePeer(nodeID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, nodeID)
}

// OnReceive implements leadership.Transport.
func (h *RaftHub) OnReceive(cb func(context.Context, raftpb.Message) error) {
	h.onReceive = cb
}

// Send implements leadership.Transport.
func (h *RaftHub) Send(ctx context.Context, msg raftpb.Message) error {
	encoded, err := msg.Marshal()
	if err != nil {
		return err
	}

	h.mu.Lock()
	peer, ok := h.peers[msg.To]
	h.mu.Unlock()
	if !ok {
		return ErrReceiverUnknown
	}

	url := fmt.Sprintf("http://%s:%d/raftmessages", peer.Host, peer.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), "Timeout") {
			return ErrSendTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusForbidden {
			return ErrSenderUnknown
		}
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("transport: peer %d returned status %d: %s", msg.To, resp.StatusCode, body)
	}

	return nil
}

// Attach registers the /raftmessages endpoint on router.
func (h *RaftHub) Attach(router *mux.Router) {
	router.HandleFunc("/raftmessages", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logging.Log.Warningf("POST /raftmessages: unable to read body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var msg raftpb.Message
		if err := msg.Unmarshal(body); err != nil {
			logging.Log.Warningf("POST /raftmessages: unable to parse body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		h.mu.Lock()
		_, known := h.peers[msg.From]
		h.mu.Unlock()
		if !known {
			logging.Log.Warningf("POST /raftmessages: sender %d is not a known peer", msg.From)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		if h.onReceive == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if err := h.onReceive(r.Context(), msg); err != nil {
			logging.Log.Warningf("POST /raftmessages: receive failed: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)
}
