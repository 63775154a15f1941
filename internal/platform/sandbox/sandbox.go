// Package sandbox is an in-memory SmartLab backend for local development
// and integration tests. It implements the HTTP surface the client
// consumes: the auth endpoints issuing 7-day HS256 tokens, the REST
// collections with their /mine and /pending listings and entity
// sub-paths, the canonical error envelope, the report PDF download, and
// the activity sink.
//
// It deliberately mixes the "param" and "field" spellings in validation
// errors, because the real backend does.
package sandbox

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/pkg/pagination"
)

const tokenTTL = 7 * 24 * time.Hour

// account pairs a user record with its credential.
type account struct {
	user     gateway.User
	password string
}

// Server is one sandbox instance. Safe for concurrent use.
type Server struct {
	echo   *echo.Echo
	secret []byte
	log    zerolog.Logger

	mu           sync.Mutex
	accounts     map[string]*account // keyed by user ID
	patients     map[string]*gateway.Patient
	appointments map[string]*gateway.Appointment
	reports      map[string]*gateway.Report
	payments     map[string]*gateway.Payment
	complaints   map[string]*gateway.Complaint
	events       []map[string]any
	order        map[string]int // insertion order for deterministic lists
	seq          int
}

// New returns a seeded sandbox.
func New(log zerolog.Logger) *Server {
	s := &Server{
		echo:         echo.New(),
		secret:       []byte("smartlab-sandbox"),
		log:          log,
		accounts:     map[string]*account{},
		patients:     map[string]*gateway.Patient{},
		appointments: map[string]*gateway.Appointment{},
		reports:      map[string]*gateway.Report{},
		payments:     map[string]*gateway.Payment{},
		complaints:   map[string]*gateway.Complaint{},
		order:        map[string]int{},
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.renderError
	s.seed()
	s.routes()
	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until the process ends.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("sandbox backend listening")
	return s.echo.Start(addr)
}

// Events returns a copy of everything posted to the activity sink.
func (s *Server) Events() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	id := prefix + "-" + strconv.Itoa(s.seq)
	s.order[id] = s.seq
	return id
}

// seed provisions one user per role plus a few records to browse.
func (s *Server) seed() {
	admin := gateway.User{ID: "u-admin", Email: "admin@smartlab.test", FirstName: "Sana", LastName: "Qureshi", Role: auth.RoleSuperadmin, CreatedAt: time.Now().UTC()}
	recep := gateway.User{ID: "u-recep", Email: "reception@smartlab.test", FirstName: "Omar", LastName: "Baig", Role: auth.RoleReceptionist, Department: "Front Desk", EmployeeID: "EMP-7", CreatedAt: time.Now().UTC()}
	patient := gateway.User{ID: "u-patient", Email: "patient@smartlab.test", FirstName: "Ayesha", LastName: "Khan", Role: auth.RolePatient, Phone: "555-0100",
		Medical: &gateway.MedicalInfo{BloodGroup: "B+"}, CreatedAt: time.Now().UTC()}

	s.accounts[admin.ID] = &account{user: admin, password: "Admin123"}
	s.accounts[recep.ID] = &account{user: recep, password: "Recep123"}
	s.accounts[patient.ID] = &account{user: patient, password: "Patient123"}

	p := &gateway.Patient{ID: s.nextID("pat"), UserID: patient.ID, FirstName: patient.FirstName, LastName: patient.LastName,
		Email: patient.Email, Phone: patient.Phone, Medical: patient.Medical, CreatedAt: time.Now().UTC()}
	s.patients[p.ID] = p

	a := &gateway.Appointment{ID: s.nextID("apt"), PatientID: patient.ID, PatientName: patient.FullName(),
		TestType: "CBC", Date: "2025-01-20", Time: "09:30", Status: "Pending", CreatedAt: time.Now().UTC()}
	s.appointments[a.ID] = a

	r := &gateway.Report{ID: s.nextID("rep"), PatientID: patient.ID, PatientName: patient.FullName(),
		TestType: "CBC", Status: "Ready", CreatedAt: time.Now().UTC()}
	s.reports[r.ID] = r

	pay := &gateway.Payment{ID: s.nextID("pay"), PatientID: patient.ID, Amount: 45.00, Status: "Pending", CreatedAt: time.Now().UTC()}
	s.payments[pay.ID] = pay
}

// ---------------------------------------------------------------------------
// Tokens and middleware
// ---------------------------------------------------------------------------

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *Server) issueToken(u *gateway.User) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Role: string(u.Role),
	}).SignedString(s.secret)
}

const userKey = "sandbox_user"

// requireAuth parses the bearer token and loads the account onto the
// context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return fail(http.StatusUnauthorized, "missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return fail(http.StatusUnauthorized, "invalid authorization format")
		}

		cl := &claims{}
		tok, err := jwt.ParseWithClaims(parts[1], cl, func(t *jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			return fail(http.StatusUnauthorized, "invalid token")
		}

		s.mu.Lock()
		acc, ok := s.accounts[cl.Subject]
		s.mu.Unlock()
		if !ok {
			return fail(http.StatusUnauthorized, "unknown account")
		}
		user := acc.user
		c.Set(userKey, &user)
		return next(c)
	}
}

// requireStaff rejects patient callers.
func (s *Server) requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := currentUser(c)
		if !auth.HasRole(u.Role, auth.RoleSuperadmin, auth.RoleReceptionist) {
			return fail(http.StatusForbidden, "staff access required")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *gateway.User {
	u, _ := c.Get(userKey).(*gateway.User)
	return u
}

// ---------------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------------

// apiError is the canonical error envelope, rendered by renderError. All
// handlers signal failure by returning one rather than writing directly,
// so helpers layered over handlers can stop on the first error.
type apiError struct {
	status  int
	message string
	fields  []map[string]string
}

func (e *apiError) Error() string { return e.message }

func fail(status int, message string) error {
	return &apiError{status: status, message: message}
}

// invalid builds the validation envelope. Field names alternate between
// the "param" and "field" spellings to mirror the real backend.
func invalid(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var list []map[string]string
	for i, name := range names {
		if i%2 == 0 {
			list = append(list, map[string]string{"param": name, "msg": fields[name]})
		} else {
			list = append(list, map[string]string{"field": name, "message": fields[name]})
		}
	}
	return &apiError{status: http.StatusBadRequest, message: "validation failed", fields: list}
}

func (s *Server) renderError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var ae *apiError
	if errors.As(err, &ae) {
		body := map[string]any{"message": ae.message}
		if len(ae.fields) > 0 {
			body["errors"] = ae.fields
		}
		_ = c.JSON(ae.status, body)
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"message": http.StatusText(he.Code)})
		return
	}
	s.log.Error().Err(err).Str("path", c.Path()).Msg("unhandled sandbox error")
	_ = c.JSON(http.StatusInternalServerError, map[string]any{"message": "internal error"})
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{"data": data})
}

func listEnvelope(c echo.Context, items any, total int, p pagination.Params) error {
	pages := (total + p.Limit - 1) / p.Limit
	return c.JSON(http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
		"page":  p.Page,
		"pages": pages,
		"limit": p.Limit,
	})
}

func pageParams(c echo.Context) pagination.Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return pagination.Normalize(page, limit)
}

// slice applies pagination to an already-filtered list length.
func sliceBounds(total int, p pagination.Params) (int, int) {
	start := (p.Page - 1) * p.Limit
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}
