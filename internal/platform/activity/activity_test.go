package activity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// captureSink records every event posted to /logs/activity.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestLogger(t *testing.T, sink *captureSink) *Logger {
	t.Helper()
	srv := httptest.NewServer(sink)
	t.Cleanup(srv.Close)
	return New(Options{
		Enabled:   true,
		BaseURL:   srv.URL,
		UserAgent: "smartlab-test/0",
		Logger:    zerolog.Nop(),
	})
}

func TestEventShape(t *testing.T) {
	sink := &captureSink{}
	l := newTestLogger(t, sink)
	l.SetUser("u1")
	l.SetLocation("/patients")
	l.UserLogin("alice@x", true, "")
	l.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events; want 1", len(events))
	}
	ev := events[0]
	if ev.Event != KindUserLogin {
		t.Errorf("kind = %q", ev.Event)
	}
	if ev.UserID == nil || *ev.UserID != "u1" {
		t.Errorf("userId = %v; want u1", ev.UserID)
	}
	if ev.SessionID == "" {
		t.Error("sessionId should be minted lazily on first emission")
	}
	if ev.URL != "/patients" {
		t.Errorf("url = %q", ev.URL)
	}
	if ev.UserAgent != "smartlab-test/0" {
		t.Errorf("userAgent = %q", ev.UserAgent)
	}
	if ev.Details["email"] != "alice@x" || ev.Details["success"] != true {
		t.Errorf("details = %v", ev.Details)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestAnonymousEventCarriesNullUser(t *testing.T) {
	sink := &captureSink{}
	l := newTestLogger(t, sink)
	l.UserLogin("bob@x", false, "invalid credentials")
	l.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events; want 1", len(events))
	}
	if events[0].UserID != nil {
		t.Errorf("userId = %v; want null before admission", *events[0].UserID)
	}
	if events[0].Details["error"] != "invalid credentials" {
		t.Errorf("details = %v", events[0].Details)
	}
}

func TestSessionIDStablePerProcess(t *testing.T) {
	sink := &captureSink{}
	l := newTestLogger(t, sink)
	l.UserLogin("a@x", true, "")
	l.UserLogout("a@x")
	l.Close()

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("got %d events; want 2", len(events))
	}
	if events[0].SessionID != events[1].SessionID {
		t.Errorf("session IDs differ: %q vs %q", events[0].SessionID, events[1].SessionID)
	}
}

func TestPayloadPrivacy(t *testing.T) {
	sink := &captureSink{}
	l := newTestLogger(t, sink)
	l.Resource(KindUpdateResource, "patients", "p1", map[string]any{
		"medicalHistory": "diabetes",
		"allergies":      "peanuts",
	})
	l.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events; want 1", len(events))
	}
	ev := events[0]
	if ev.Details["resource"] != "patients" || ev.Details["resourceId"] != "p1" {
		t.Errorf("details = %v", ev.Details)
	}
	keys, ok := ev.Details["changesKeys"].([]any)
	if !ok || len(keys) != 2 || keys[0] != "allergies" || keys[1] != "medicalHistory" {
		t.Errorf("changesKeys = %v", ev.Details["changesKeys"])
	}
	// The values must not appear anywhere in the serialized event.
	raw, _ := json.Marshal(ev)
	for _, secret := range []string{"diabetes", "peanuts"} {
		if strings.Contains(string(raw), secret) {
			t.Errorf("event leaked payload value %q: %s", secret, raw)
		}
	}
}

func TestDisabledLoggerDropsEverything(t *testing.T) {
	sink := &captureSink{}
	srv := httptest.NewServer(sink)
	defer srv.Close()

	l := New(Options{Enabled: false, BaseURL: srv.URL, Logger: zerolog.Nop()})
	l.UserLogin("a@x", true, "")
	l.Close()

	if got := len(sink.all()); got != 0 {
		t.Fatalf("disabled logger delivered %d events", got)
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	// Sink that blocks until released, so the queue backs up.
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		delivered = append(delivered, ev.Details["event"].(string))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	l := New(Options{Enabled: true, BaseURL: srv.URL, QueueSize: 2, UserAgent: "t", Logger: zerolog.Nop()})

	l.Security("first", nil)
	// Give the consumer a moment to pick up the first event, which then
	// blocks inside the sink; the queue now holds what follows.
	time.Sleep(50 * time.Millisecond)
	l.Security("second", nil)
	l.Security("third", nil)
	l.Security("fourth", nil) // queue full: "second" is dropped

	close(release)
	l.Close()

	mu.Lock()
	defer mu.Unlock()
	for _, name := range delivered {
		if name == "second" {
			t.Fatalf("oldest queued event should have been dropped, delivered: %v", delivered)
		}
	}
	found := false
	for _, name := range delivered {
		if name == "fourth" {
			found = true
		}
	}
	if !found {
		t.Fatalf("newest event missing, delivered: %v", delivered)
	}
}

func TestPayloadKeysSorted(t *testing.T) {
	keys := PayloadKeys(map[string]any{"b": 1, "a": 2, "c": 3})
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("PayloadKeys = %v", keys)
	}
	if got := PayloadKeys(nil); len(got) != 0 {
		t.Fatalf("PayloadKeys(nil) = %v", got)
	}
}
