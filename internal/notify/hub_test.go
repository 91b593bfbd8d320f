package notify_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/internal/notify"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *notify.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
}

func TestBroadcastNewJob(t *testing.T) {
	hub := notify.NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	hub.BroadcastNewJob(&models.Job{
		ID:           7,
		IncidentType: "flooding",
		Location:     "Sydney",
		Urgency:      models.UrgencyHigh,
		Created:      1000,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if event["type"] != "new_job" {
		t.Errorf("type = %v, want new_job", event["type"])
	}
	if event["job_id"].(float64) != 7 {
		t.Errorf("job_id = %v, want 7", event["job_id"])
	}
	if event["incident_type"] != "flooding" || event["location"] != "Sydney" {
		t.Errorf("event = %v", event)
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := notify.NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	defer srv.Close()

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForSubscribers(t, hub, 2)

	hub.BroadcastNewJob(&models.Job{ID: 1, IncidentType: "flooding", Location: "Sydney"})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("subscriber %d: %v", i, err)
		}
		if event["job_id"].(float64) != 1 {
			t.Errorf("subscriber %d job_id = %v, want 1", i, event["job_id"])
		}
	}
}

// Incident reports can land on several handler goroutines at once, so
// broadcasts must serialize their writes per connection; the websocket
// library panics on concurrent writers.
func TestConcurrentBroadcasts(t *testing.T) {
	hub := notify.NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	const broadcasters = 8
	const perBroadcaster = 5

	received := make(chan struct{}, broadcasters*perBroadcaster)
	go func() {
		for {
			var event map[string]any
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < broadcasters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perBroadcaster; j++ {
				hub.BroadcastNewJob(&models.Job{ID: int64(i*perBroadcaster + j), IncidentType: "flooding", Location: "Sydney"})
			}
		}(i)
	}
	wg.Wait()

	for n := 0; n < broadcasters*perBroadcaster; n++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", n, broadcasters*perBroadcaster)
		}
	}
	if hub.Subscribers() != 1 {
		t.Errorf("subscribers = %d, healthy client was dropped", hub.Subscribers())
	}
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	hub := notify.NewHub(nil)
	defer hub.Close()

	// must not block or panic
	hub.BroadcastNewJob(&models.Job{ID: 1, IncidentType: "flooding", Location: "Sydney"})
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after Close succeeded, want connection closed")
	}
}
