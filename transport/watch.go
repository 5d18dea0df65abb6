package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/replicated-store/guardian/ids"
	"github.com/replicated-store/guardian/logging"
	"github.com/replicated-store/guardian/proposal"
)

// ReconfigureEvent is what WatchFeed.Broadcast sends, the wire shape an
// operator's watch client receives as JSON over the websocket connection.
// Neither the driver nor guardian.Reconfigure calls Broadcast.
type ReconfigureEvent struct {
	Partition string             `json:"partition"`
	Action    proposal.ActionType `json:"action"`
	Target    ids.NodeID         `json:"target"`
	Node      ids.NodeID         `json:"node"`
	Ballot    int64              `json:"ballot"`
}

// WatchFeed fans a stream of ReconfigureEvents out to any number of
// connected websocket clients: a broadcast register/fan-out loop rather
// than a point-to-point one.
type WatchFeed struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan ReconfigureEvent
}

// NewWatchFeed returns an empty feed ready to accept connections.
func NewWatchFeed() *WatchFeed {
	return &WatchFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan ReconfigureEvent),
	}
}

// ServeHTTP upgrades the connection and registers it as a broadcast
// recipient until the client disconnects.
func (f *WatchFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warningf("watch: upgrade failed: %v", err)
		return
	}

	out := make(chan ReconfigureEvent, 64)
	f.mu.Lock()
	f.clients[conn] = out
	f.mu.Unlock()

	go func() {
		defer func() {
			f.mu.Lock()
			delete(f.clients, conn)
			f.mu.Unlock()
			conn.Close()
		}()

		for event := range out {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// Drain and discard anything the client sends; this is a
	// publish-only feed, but we still need to notice a closed socket.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.mu.Lock()
				ch, ok := f.clients[conn]
				delete(f.clients, conn)
				f.mu.Unlock()
				if ok {
					close(ch)
				}
				return
			}
		}
	}()
}

// Broadcast pushes event to every currently connected client, dropping it
// for any client whose buffer is full rather than blocking the caller.
func (f *WatchFeed) Broadcast(event ReconfigureEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.clients {
		select {
		case ch <- event:
		default:
			logging.Log.Warningf("watch: dropping event for slow client")
		}
	}
}
