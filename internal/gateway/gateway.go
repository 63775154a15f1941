// Package gateway is the uniform resource-access layer: one facade per
// backend entity, each exposing the fixed vocabulary of collection and
// entity operations over the shared transport. The gateway selects
// role-appropriate endpoints centrally so screens never branch on role,
// emits CRUD audit events (payload key names only), and propagates errors
// unchanged.
package gateway

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/internal/platform/transport"
	"github.com/smartlab/smartlab/pkg/pagination"
)

// Query is a flat map of collection filters (status, priority, method,
// type, search, page, limit).
type Query map[string]string

// WithPage overlays normalized pagination parameters onto the query.
func (q Query) WithPage(page, limit int) Query {
	p := pagination.Normalize(page, limit)
	out := Query{}
	for k, v := range q {
		out[k] = v
	}
	out["page"] = strconv.Itoa(p.Page)
	out["limit"] = strconv.Itoa(p.Limit)
	return out
}

// encode renders the query as a URL query string with a leading "?", or ""
// when empty. Keys are sorted for deterministic URLs.
func (q Query) encode() string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		if q[k] != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	v := url.Values{}
	for _, k := range keys {
		v.Set(k, q[k])
	}
	return "?" + v.Encode()
}

// asMap renders a typed request body as a flat map so audit events can
// report its key names. Returns nil when the body does not round-trip.
func asMap(body any) map[string]any {
	if m, ok := body.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

// Caller tags the identity on whose behalf a collection is read. A Self
// caller reads their own slice of a collection; Staff reads all of it.
type Caller interface {
	// CollectionPath selects the role-appropriate collection endpoint for
	// resources that expose both an all and a mine listing.
	CollectionPath(resource string) string
}

// SelfCaller routes collection reads to the caller's own records.
type SelfCaller struct{ User *User }

func (SelfCaller) CollectionPath(resource string) string { return "/" + resource + "/mine" }

// StaffCaller routes collection reads to the full collection.
type StaffCaller struct{ User *User }

func (StaffCaller) CollectionPath(resource string) string { return "/" + resource }

// CallerFor wraps a user in the variant matching their role. Patients are
// Self; staff and anonymous sessions read the base collection.
func CallerFor(u *User) Caller {
	if u != nil && u.Role == auth.RolePatient {
		return SelfCaller{User: u}
	}
	return StaffCaller{User: u}
}

// CallerFunc yields the current caller; the session controller is the
// production implementation.
type CallerFunc func() Caller

// Gateway bundles the per-entity facades over one transport.
type Gateway struct {
	Auth         *AuthService
	Patients     *PatientService
	Appointments *AppointmentService
	Reports      *ReportService
	Payments     *PaymentService
	Complaints   *ComplaintService
	Users        *UserService
}

func New(client *transport.Client, audit *activity.Logger, caller CallerFunc) *Gateway {
	if caller == nil {
		caller = func() Caller { return StaffCaller{} }
	}
	return &Gateway{
		Auth:         &AuthService{client: client},
		Patients:     &PatientService{client: client, audit: audit},
		Appointments: &AppointmentService{client: client, audit: audit, caller: caller},
		Reports:      &ReportService{client: client, audit: audit, caller: caller},
		Payments:     &PaymentService{client: client, audit: audit, caller: caller},
		Complaints:   &ComplaintService{client: client, audit: audit, caller: caller},
		Users:        &UserService{client: client, audit: audit},
	}
}
