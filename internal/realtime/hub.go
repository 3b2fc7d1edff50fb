// Package realtime pushes refresh notifications to websocket subscribers of a project.
package realtime

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Event tells subscribers that a resource of the project changed and should be refetched.
type Event struct {
	Type      string `json:"type"`
	Resource  string `json:"resource,omitempty"`
	Action    string `json:"action,omitempty"`
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"project_id"`
	Message   string `json:"message,omitempty"`
}

func Refresh(resource, action, id, projectID string) Event {
	return Event{Type: "refresh", Resource: resource, Action: action, ID: id, ProjectID: projectID}
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// newSubscriber queues the welcome event on a fresh buffer, so it is always
// the first event and never blocks. The subscriber must not be registered yet.
func newSubscriber(conn *websocket.Conn, projectID string) *subscriber {
	sub := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	sub.send <- Event{Type: "connected", Message: "WebSocket connection established", ProjectID: projectID}
	return sub
}

type Hub struct {
	mu       sync.RWMutex
	projects map[string]map[*subscriber]bool
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewHub(allowedOrigins []string, log logrus.FieldLogger) *Hub {
	return &Hub{
		projects: make(map[string]map[*subscriber]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		log: log,
	}
}

// Broadcast queues e for every subscriber of e.ProjectID. Subscribers whose
// buffer is full are disconnected rather than blocking the caller.
func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.projects[e.ProjectID] {
		select {
		case sub.send <- e:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.WithField("project_id", e.ProjectID).Warn("Dropping slow websocket subscriber")
		h.unregister(e.ProjectID, sub)
	}
}

// Subscribers returns the number of open connections for a project.
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

func (h *Hub) register(projectID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[projectID] == nil {
		h.projects[projectID] = make(map[*subscriber]bool)
	}
	h.projects[projectID][sub] = true
}

func (h *Hub) unregister(projectID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.projects[projectID]
	if !ok || !subs[sub] {
		return
	}

	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.projects, projectID)
	}
	close(sub.send)
}

// Serve upgrades the request and blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, projectID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	log := h.log.WithField("project_id", projectID)
	sub := newSubscriber(conn, projectID)
	h.register(projectID, sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(sub, log)
	}()

	readPump(sub, log)

	h.unregister(projectID, sub)
	<-done
	conn.Close()

	log.Debug("WebSocket connection closed")
	return nil
}

func readPump(sub *subscriber, log logrus.FieldLogger) {
	conn := sub.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("WebSocket read failed")
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func writePump(sub *subscriber, log logrus.FieldLogger) {
	conn := sub.conn
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				conn.Close()
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.WithError(err).Warn("WebSocket write failed")
				conn.Close()
				drain(sub.send)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(sub.send)
				return
			}
		}
	}
}

// drain consumes events until the hub closes the channel.
func drain(ch <-chan Event) {
	for range ch {
	}
}
