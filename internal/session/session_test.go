package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/internal/platform/tokenstore"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// fakeBackend implements just enough of the auth surface for the
// controller: a single valid credential pair and bearer check on /auth/me.
type fakeBackend struct {
	mu         sync.Mutex
	token      string
	user       map[string]any
	meCalls    int
	lastBearer string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Email, Password string }
		body := map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		creds.Email, creds.Password = body["email"], body["password"]
		if creds.Email != "alice@x" || creds.Password != "Secret1" {
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]any{"message": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": b.token,
			"data":  map[string]any{"user": b.user},
		})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.meCalls++
		b.lastBearer = r.Header.Get("Authorization")
		bearer := b.lastBearer
		b.mu.Unlock()
		if bearer != "Bearer "+b.token {
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]any{"message": "token rejected"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"user": b.user}})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("PUT /auth/password", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token": "fresh-" + b.token,
			"data":  map[string]any{"user": b.user},
		})
	})
	return mux
}

type sinkEvent struct {
	Event   string         `json:"event"`
	Details map[string]any `json:"details"`
	UserID  *string        `json:"userId"`
}

type eventSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *eventSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev sinkEvent
	_ = json.NewDecoder(r.Body).Decode(&ev)
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	w.WriteHeader(202)
}

func (s *eventSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sinkEvent, len(s.events))
	copy(out, s.events)
	return out
}

type fixture struct {
	ctrl    *Controller
	store   tokenstore.Store
	backend *fakeBackend
	sink    *eventSink
	audit   *activity.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{
		token: "T",
		user: map[string]any{
			"id": "u1", "email": "alice@x", "firstName": "Alice",
			"lastName": "Smith", "role": "patient",
		},
	}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	sink := &eventSink{}
	sinkSrv := httptest.NewServer(sink)
	t.Cleanup(sinkSrv.Close)

	audit := activity.New(activity.Options{
		Enabled: true, BaseURL: sinkSrv.URL, UserAgent: "test", Logger: zerolog.Nop(),
	})

	store := tokenstore.NewMemoryStore()
	ctrl := New(store, audit, zerolog.Nop())
	client := transport.New(transport.Options{
		BaseURL:       srv.URL,
		Tokens:        ctrl.Token,
		OnAuthFailure: ctrl.Invalidate,
		Logger:        zerolog.Nop(),
	})
	gw := gateway.New(client, audit, ctrl.Caller)
	ctrl.BindAuth(gw.Auth)

	return &fixture{ctrl: ctrl, store: store, backend: backend, sink: sink, audit: audit}
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	if !f.ctrl.Loading() {
		t.Error("controller must start loading")
	}
	if f.ctrl.Authenticated() {
		t.Error("controller must start anonymous")
	}
}

// S1: happy-path login installs the token in the store and state, admits
// the user, and delivers a successful USER_LOGIN event.
func TestLoginHappyPath(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())

	res := f.ctrl.Login(context.Background(), "alice@x", "Secret1")
	if !res.Success {
		t.Fatalf("login failed: %s", res.Message)
	}

	if tok, ok := f.store.Get(); !ok || tok != "T" {
		t.Errorf("token store = %q, %v; want T", tok, ok)
	}
	if tok, ok := f.ctrl.Token(); !ok || tok != "T" {
		t.Errorf("session token = %q, %v; want T", tok, ok)
	}
	u := f.ctrl.User()
	if u == nil || u.ID != "u1" || u.Role != auth.RolePatient {
		t.Fatalf("user = %+v", u)
	}
	if f.ctrl.Loading() {
		t.Error("loading must be false after bootstrap")
	}

	f.audit.Close()
	events := f.sink.all()
	if len(events) != 1 || events[0].Event != "USER_LOGIN" {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Details["email"] != "alice@x" || events[0].Details["success"] != true {
		t.Errorf("login event details = %v", events[0].Details)
	}
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())

	res := f.ctrl.Login(context.Background(), "alice@x", "wrong")
	if res.Success {
		t.Fatal("login should fail")
	}
	if f.ctrl.Authenticated() {
		t.Fatal("failed login must not admit a user")
	}

	f.audit.Close()
	events := f.sink.all()
	if len(events) != 1 || events[0].Details["success"] != false {
		t.Fatalf("events = %+v", events)
	}
	if events[0].UserID != nil {
		t.Error("failed login event must carry a null user")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture(t)
	if res := f.ctrl.Login(context.Background(), "", "x"); res.Success {
		t.Error("empty email must be rejected locally")
	}
	if res := f.ctrl.Login(context.Background(), "a@x", ""); res.Success {
		t.Error("empty password must be rejected locally")
	}
}

// Rehydration with a valid persisted token restores the session.
func TestBootstrapWithValidToken(t *testing.T) {
	f := newFixture(t)
	f.store.Put("T")

	f.ctrl.Bootstrap(context.Background())

	if f.ctrl.Loading() {
		t.Error("loading must clear after bootstrap")
	}
	if u := f.ctrl.User(); u == nil || u.Email != "alice@x" {
		t.Fatalf("user = %+v", u)
	}
	if f.backend.lastBearer != "Bearer T" {
		t.Errorf("getMe bearer = %q", f.backend.lastBearer)
	}
}

// S2: rehydration with a rejected token ends anonymous with the store
// cleared.
func TestBootstrapWithStaleToken(t *testing.T) {
	f := newFixture(t)
	f.store.Put("STALE")

	f.ctrl.Bootstrap(context.Background())

	if f.backend.lastBearer != "Bearer STALE" {
		t.Errorf("getMe bearer = %q; want Bearer STALE", f.backend.lastBearer)
	}
	if f.ctrl.Authenticated() {
		t.Fatal("rejected token must leave the session anonymous")
	}
	if f.ctrl.Loading() {
		t.Error("loading must clear even on failure")
	}
	if tok, ok := f.ctrl.Token(); ok {
		t.Errorf("session still holds token %q", tok)
	}
	if tok, ok := f.store.Get(); ok {
		t.Errorf("store still holds token %q", tok)
	}
}

func TestBootstrapWithoutToken(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	if f.ctrl.Loading() || f.ctrl.Authenticated() {
		t.Fatal("no token: anonymous, not loading")
	}
	if f.backend.meCalls != 0 {
		t.Error("getMe must not be called without a token")
	}
}

// Logout emits its event before clearing state, so the identity is still
// attached; only then does the anonymous state follow.
func TestLogoutOrdering(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Login(context.Background(), "alice@x", "Secret1")

	f.ctrl.Logout(context.Background())

	if f.ctrl.Authenticated() {
		t.Fatal("logout must clear the user")
	}
	if _, ok := f.store.Get(); ok {
		t.Fatal("logout must clear the token store")
	}

	f.audit.Close()
	events := f.sink.all()
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	logout := events[1]
	if logout.Event != "USER_LOGOUT" {
		t.Fatalf("second event = %q; want USER_LOGOUT", logout.Event)
	}
	if logout.Details["email"] != "alice@x" {
		t.Errorf("logout event lost the email: %v", logout.Details)
	}
	if logout.UserID == nil || *logout.UserID != "u1" {
		t.Error("logout event must still carry the outgoing user")
	}
}

func TestLogoutWhenAnonymousIsNoop(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Logout(context.Background())
	f.audit.Close()
	if got := len(f.sink.all()); got != 0 {
		t.Fatalf("anonymous logout emitted %d events", got)
	}
}

// Two concurrent 401s collapse into a single transition to anonymous.
func TestInvalidateIdempotent(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Login(context.Background(), "alice@x", "Secret1")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ctrl.Invalidate()
		}()
	}
	wg.Wait()

	if f.ctrl.Authenticated() {
		t.Fatal("invalidate must clear the session")
	}
	if _, ok := f.store.Get(); ok {
		t.Fatal("invalidate must clear the store")
	}
	// And again, for good measure: still a no-op.
	f.ctrl.Invalidate()
}

func TestChangePasswordInstallsFreshToken(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Login(context.Background(), "alice@x", "Secret1")

	res := f.ctrl.ChangePassword(context.Background(), "Secret1", "Newpass1")
	if !res.Success {
		t.Fatalf("change password failed: %s", res.Message)
	}
	if tok, _ := f.ctrl.Token(); tok != "fresh-T" {
		t.Errorf("session token = %q; want fresh-T", tok)
	}
	if tok, _ := f.store.Get(); tok != "fresh-T" {
		t.Errorf("stored token = %q; want fresh-T", tok)
	}
}

func TestChangePasswordValidatesPolicy(t *testing.T) {
	f := newFixture(t)
	res := f.ctrl.ChangePassword(context.Background(), "old", "weak")
	if res.Success {
		t.Fatal("weak password must be rejected before any request")
	}
}

func TestTokenExpiry(t *testing.T) {
	f := newFixture(t)
	exp := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("sandbox"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	f.backend.token = tok
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Login(context.Background(), "alice@x", "Secret1")

	got, ok := f.ctrl.TokenExpiry()
	if !ok || !got.Equal(exp) {
		t.Fatalf("TokenExpiry = %v, %v; want %v", got, ok, exp)
	}
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap(context.Background())
	f.ctrl.Login(context.Background(), "alice@x", "Secret1")
	if _, ok := f.ctrl.TokenExpiry(); ok {
		t.Fatal("non-JWT token has no decodable expiry")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		pw string
		ok bool
	}{
		{"Secret1", true},
		{"Aa1xyz", true},
		{"short", false},
		{"alllower1", false},
		{"ALLUPPER1", false},
		{"NoDigits", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.pw)
		if (err == nil) != tc.ok {
			t.Errorf("ValidatePassword(%q) = %v; want ok=%v", tc.pw, err, tc.ok)
		}
	}
}
