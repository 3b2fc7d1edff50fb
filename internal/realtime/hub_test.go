package realtime

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHub([]string{"http://localhost:5173"}, log)
}

func dial(t *testing.T, hub *Hub, projectID string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, projectID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	var e Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return e
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := newTestHub()

	conn, _, err := dial(t, hub, "p1", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if e := readEvent(t, conn); e.Type != "connected" || e.ProjectID != "p1" {
		t.Fatalf("welcome = %+v", e)
	}
	if n := hub.Subscribers("p1"); n != 1 {
		t.Fatalf("Subscribers() = %d, want 1", n)
	}

	hub.Broadcast(Refresh("task", "created", "t1", "other"))
	hub.Broadcast(Refresh("task", "created", "t2", "p1"))

	e := readEvent(t, conn)
	if e.Type != "refresh" || e.ID != "t2" || e.Resource != "task" || e.Action != "created" {
		t.Errorf("event = %+v", e)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := newTestHub()

	conn, _, err := dial(t, hub, "p1", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	readEvent(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("p1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRejectsUnknownOrigin(t *testing.T) {
	hub := newTestHub()

	header := http.Header{"Origin": {"https://evil.example.com"}}
	_, resp, err := dial(t, hub, "p1", header)
	if err == nil {
		t.Fatal("Dial() should fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestWelcomeQueuedBeforeBroadcasts(t *testing.T) {
	hub := newTestHub()

	sub := newSubscriber(nil, "p1")
	hub.register("p1", sub)

	// One slot is taken by the welcome, so this overflows the buffer and
	// drops the subscriber.
	for i := 0; i < sendBuffer; i++ {
		hub.Broadcast(Refresh("task", "updated", "t1", "p1"))
	}

	if n := hub.Subscribers("p1"); n != 0 {
		t.Fatalf("Subscribers() = %d, want slow subscriber dropped", n)
	}

	first, ok := <-sub.send
	if !ok || first.Type != "connected" {
		t.Fatalf("first event = %+v, want connected", first)
	}

	var queued int
	for range sub.send {
		queued++
	}
	if queued != sendBuffer-1 {
		t.Errorf("queued %d refreshes, want %d", queued, sendBuffer-1)
	}
}
