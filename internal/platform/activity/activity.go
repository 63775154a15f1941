// Package activity is the fire-and-forget audit pipeline. Every
// security-relevant action is assembled into an event and posted to the
// backend sink at /logs/activity. Emission never blocks the caller and
// never surfaces errors; delivery failures are only warned.
//
// Events flow through a bounded queue with a single consumer goroutine.
// When the queue is full the oldest event is dropped, never the caller.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind names one audit event class.
type Kind string

const (
	KindUserLogin        Kind = "USER_LOGIN"
	KindUserLogout       Kind = "USER_LOGOUT"
	KindUserRegistration Kind = "USER_REGISTRATION"
	KindPasswordChange   Kind = "PASSWORD_CHANGE"
	KindCreateResource   Kind = "CREATE_RESOURCE"
	KindUpdateResource   Kind = "UPDATE_RESOURCE"
	KindDeleteResource   Kind = "DELETE_RESOURCE"
	KindReadResource     Kind = "READ_RESOURCE"
	KindNavigation       Kind = "NAVIGATION"
	KindSearch           Kind = "SEARCH"
	KindError            Kind = "ERROR"
	KindSecurityEvent    Kind = "SECURITY_EVENT"
)

// The backend derives the real client address from the request; the
// emitter ships a placeholder.
const placeholderIP = "client"

// Event is the wire shape delivered to the sink.
type Event struct {
	Event     Kind           `json:"event"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    *string        `json:"userId"`
	SessionID string         `json:"sessionId"`
	URL       string         `json:"url"`
	UserAgent string         `json:"userAgent"`
}

const (
	defaultQueueSize = 256
	sinkPath         = "/logs/activity"
	postTimeout      = 10 * time.Second
)

// Logger emits audit events. The zero value is not usable; construct with New.
type Logger struct {
	enabled   bool
	sinkURL   string
	userAgent string
	client    *http.Client
	log       zerolog.Logger

	queue chan Event
	wg    sync.WaitGroup
	stop  chan struct{}

	mu        sync.Mutex
	userID    string
	location  string
	sessionID string
}

// Options configures a Logger.
type Options struct {
	// Enabled gates emission entirely; a disabled logger drops every event
	// synchronously. ENV=production forces it on at wiring time.
	Enabled bool
	// BaseURL is the backend base; the sink lives at BaseURL+/logs/activity.
	BaseURL   string
	UserAgent string
	QueueSize int
	Logger    zerolog.Logger
}

func New(opts Options) *Logger {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	l := &Logger{
		enabled:   opts.Enabled,
		sinkURL:   opts.BaseURL + sinkPath,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: postTimeout},
		log:       opts.Logger,
		queue:     make(chan Event, size),
		stop:      make(chan struct{}),
	}
	if l.enabled {
		l.wg.Add(1)
		go l.deliver()
	}
	return l
}

// SetUser records the admitted user's identifier. Events emitted before
// this call carry a null user.
func (l *Logger) SetUser(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userID = id
}

// ClearUser drops the identity after logout or invalidation.
func (l *Logger) ClearUser() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userID = ""
}

// SetLocation records the current screen or command, carried as the
// event URL.
func (l *Logger) SetLocation(loc string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.location = loc
}

// Close stops the consumer after draining queued events. Safe to call on a
// disabled logger.
func (l *Logger) Close() {
	if !l.enabled {
		return
	}
	close(l.stop)
	l.wg.Wait()
}

// Emit assembles an event and enqueues it. Never blocks: when the queue is
// full the oldest queued event is discarded to make room.
func (l *Logger) Emit(kind Kind, details map[string]any) {
	if !l.enabled {
		return
	}
	if details == nil {
		details = map[string]any{}
	}

	l.mu.Lock()
	if l.sessionID == "" {
		// Lazily minted on first emission, lives for the process.
		l.sessionID = uuid.NewString()
	}
	var userID *string
	if l.userID != "" {
		id := l.userID
		userID = &id
	}
	ev := Event{
		Event:     kind,
		Details:   details,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		SessionID: l.sessionID,
		URL:       l.location,
		UserAgent: l.userAgent,
	}
	l.mu.Unlock()

	for {
		select {
		case l.queue <- ev:
			return
		default:
		}
		// Queue full: drop the oldest and retry.
		select {
		case old := <-l.queue:
			l.log.Warn().Str("event", string(old.Event)).Msg("activity queue full, dropping oldest event")
		default:
		}
	}
}

func (l *Logger) deliver() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.queue:
			l.post(ev)
		case <-l.stop:
			// Drain whatever is queued, then exit.
			for {
				select {
				case ev := <-l.queue:
					l.post(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) post(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		l.log.Warn().Err(err).Msg("activity event marshal failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.sinkURL, bytes.NewReader(body))
	if err != nil {
		l.log.Warn().Err(err).Msg("activity event request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.log.Warn().Err(err).Str("event", string(ev.Event)).Msg("activity sink unreachable")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		l.log.Warn().Int("status", resp.StatusCode).Str("event", string(ev.Event)).Msg("activity sink rejected event")
	}
}

// PayloadKeys returns the sorted key names of a mutation payload. CRUD
// events ship only these names, never the values, so medical content
// cannot leak through the audit channel.
func PayloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
