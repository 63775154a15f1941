package sandbox

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/auth"
)

func (s *Server) routes() {
	e := s.echo

	e.POST("/auth/login", s.handleLogin)
	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/logout", s.handleLogout, s.requireAuth)
	e.GET("/auth/me", s.handleMe, s.requireAuth)
	e.PUT("/auth/profile", s.handleProfile, s.requireAuth)
	e.PUT("/auth/password", s.handlePassword, s.requireAuth)

	e.POST("/logs/activity", s.handleActivity)

	pat := e.Group("/patients", s.requireAuth, s.requireStaff)
	pat.GET("", s.listPatients)
	pat.POST("", s.createPatient)
	pat.GET("/:id", s.getPatient)
	pat.PUT("/:id", s.updatePatient)
	pat.DELETE("/:id", s.deletePatient)

	usr := e.Group("/users", s.requireAuth, s.requireSuperadmin)
	usr.GET("", s.listUsers)
	usr.POST("", s.createUser)
	usr.GET("/:id", s.getUser)
	usr.PUT("/:id", s.updateUser)
	usr.DELETE("/:id", s.deleteUser)

	apt := e.Group("/appointments", s.requireAuth)
	apt.GET("", s.listAppointments, s.requireStaff)
	apt.GET("/mine", s.listMyAppointments)
	apt.GET("/pending", s.listPendingAppointments, s.requireStaff)
	apt.POST("", s.createAppointment)
	apt.GET("/:id", s.getAppointment)
	apt.PUT("/:id", s.updateAppointment)
	apt.DELETE("/:id", s.deleteAppointment)
	apt.PUT("/:id/approve", s.approveAppointment, s.requireStaff)
	apt.PUT("/:id/reject", s.rejectAppointment, s.requireStaff)
	apt.PUT("/:id/status", s.appointmentStatus, s.requireStaff)
	apt.PUT("/:id/home-collection", s.homeCollectionDecision, s.requireStaff)

	rep := e.Group("/reports", s.requireAuth)
	rep.GET("", s.listReports, s.requireStaff)
	rep.GET("/mine", s.listMyReports)
	rep.GET("/pending", s.listPendingReports, s.requireStaff)
	rep.POST("", s.createReport, s.requireStaff)
	rep.GET("/:id", s.getReport)
	rep.PUT("/:id", s.updateReport, s.requireStaff)
	rep.DELETE("/:id", s.deleteReport, s.requireStaff)
	rep.PUT("/:id/status", s.reportStatus, s.requireStaff)
	rep.GET("/:id/download", s.downloadReport)

	pay := e.Group("/payments", s.requireAuth)
	pay.GET("", s.listPayments, s.requireStaff)
	pay.GET("/mine", s.listMyPayments)
	pay.POST("", s.createPayment, s.requireStaff)
	pay.GET("/:id", s.getPayment)
	pay.PUT("/:id", s.updatePayment, s.requireStaff)
	pay.DELETE("/:id", s.deletePayment, s.requireStaff)
	pay.PUT("/:id/status", s.paymentStatus, s.requireStaff)
	pay.PUT("/:id/process", s.processPayment, s.requireStaff)
	pay.PUT("/:id/refund", s.processRefund)
	pay.PUT("/:id/refund/status", s.refundStatus, s.requireStaff)
	pay.PUT("/:id/pay", s.makePayment)

	com := e.Group("/complaints", s.requireAuth)
	com.GET("", s.listComplaints, s.requireStaff)
	com.GET("/mine", s.listMyComplaints)
	com.GET("/pending", s.listPendingComplaints, s.requireStaff)
	com.GET("/stats", s.complaintStats, s.requireStaff)
	com.POST("", s.createComplaint)
	com.GET("/:id", s.getComplaint)
	com.PUT("/:id", s.updateComplaint)
	com.DELETE("/:id", s.deleteComplaint)
	com.PUT("/:id/assign", s.assignComplaint, s.requireStaff)
	com.PUT("/:id/resolve", s.resolveComplaint, s.requireStaff)
	com.PUT("/:id/priority", s.complaintPriority, s.requireStaff)
	com.POST("/:id/comment", s.commentComplaint)
}

// requireSuperadmin restricts staff-management endpoints.
func (s *Server) requireSuperadmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c).Role != auth.RoleSuperadmin {
			return fail(http.StatusForbidden, "superadmin access required")
		}
		return next(c)
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (s *Server) handleLogin(c echo.Context) error {
	var creds gateway.Credentials
	if err := c.Bind(&creds); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if creds.Email == "" || creds.Password == "" {
		return invalid(map[string]string{"email": "email and password are required"})
	}

	s.mu.Lock()
	acc := s.findByEmail(creds.Email)
	s.mu.Unlock()
	if acc == nil || acc.password != creds.Password {
		return fail(http.StatusUnauthorized, "invalid email or password")
	}
	return s.issueSession(c, &acc.user)
}

func (s *Server) handleRegister(c echo.Context) error {
	var body struct {
		gateway.User
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}

	fields := map[string]string{}
	if body.Email == "" {
		fields["email"] = "email is required"
	}
	if body.FirstName == "" {
		fields["firstName"] = "first name is required"
	}
	if len(body.Password) < 6 {
		fields["password"] = "password must be at least 6 characters"
	}
	if len(fields) > 0 {
		return invalid(fields)
	}

	s.mu.Lock()
	if s.findByEmail(body.Email) != nil {
		s.mu.Unlock()
		return invalid(map[string]string{"email": "email already registered"})
	}
	u := body.User
	u.ID = uuid.NewString()
	u.Role = auth.RolePatient // self-service registration always yields a patient
	u.CreatedAt = time.Now().UTC()
	s.accounts[u.ID] = &account{user: u, password: body.Password}
	p := &gateway.Patient{ID: s.nextID("pat"), UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName,
		Email: u.Email, Phone: u.Phone, Medical: u.Medical, Insurance: u.Insurance, CreatedAt: u.CreatedAt}
	s.patients[p.ID] = p
	s.mu.Unlock()

	return s.issueSession(c, &u)
}

func (s *Server) issueSession(c echo.Context, u *gateway.User) error {
	tok, err := s.issueToken(u)
	if err != nil {
		return fail(http.StatusInternalServerError, "token signing failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token": tok,
		"data":  map[string]any{"user": u},
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	// Tokens are stateless; logout succeeds so the client can clear its
	// side without special-casing.
	return c.JSON(http.StatusOK, map[string]any{"message": "logged out"})
}

func (s *Server) handleMe(c echo.Context) error {
	return ok(c, map[string]any{"user": currentUser(c)})
}

func (s *Server) handleProfile(c echo.Context) error {
	u := currentUser(c)
	updated := *u
	if err := c.Bind(&updated); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	// Identity and role are not self-editable.
	updated.ID, updated.Email, updated.Role = u.ID, u.Email, u.Role

	s.mu.Lock()
	s.accounts[u.ID].user = updated
	s.mu.Unlock()
	return ok(c, map[string]any{"user": &updated})
}

func (s *Server) handlePassword(c echo.Context) error {
	var body gateway.PasswordChange
	if err := c.Bind(&body); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	u := currentUser(c)

	s.mu.Lock()
	acc := s.accounts[u.ID]
	if acc.password != body.CurrentPassword {
		s.mu.Unlock()
		return invalid(map[string]string{"currentPassword": "current password is incorrect"})
	}
	if len(body.NewPassword) < 6 {
		s.mu.Unlock()
		return invalid(map[string]string{"newPassword": "password must be at least 6 characters"})
	}
	acc.password = body.NewPassword
	s.mu.Unlock()

	// A fresh token accompanies the rotation.
	return s.issueSession(c, u)
}

func (s *Server) handleActivity(c echo.Context) error {
	var ev map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&ev); err != nil {
		return fail(http.StatusBadRequest, "malformed event")
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) findByEmail(email string) *account {
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Generic helpers
// ---------------------------------------------------------------------------

// collect orders a store's values by insertion, filters, and paginates.
func collect[T any](s *Server, c echo.Context, store map[string]*T, idOf func(*T) string, match func(*T) bool) error {
	p := pageParams(c)

	s.mu.Lock()
	var all []*T
	for _, v := range store {
		if match == nil || match(v) {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return s.order[idOf(all[i])] < s.order[idOf(all[j])]
	})

	total := len(all)
	start, end := sliceBounds(total, p)
	page := make([]T, 0, end-start)
	for _, v := range all[start:end] {
		page = append(page, *v)
	}
	s.mu.Unlock()
	return listEnvelope(c, page, total, p)
}

func fetch[T any](s *Server, c echo.Context, store map[string]*T) (*T, error) {
	s.mu.Lock()
	v, okk := store[c.Param("id")]
	s.mu.Unlock()
	if !okk {
		return nil, fail(http.StatusNotFound, "record not found")
	}
	return v, nil
}

// mutate applies fn to the record under the lock and replies with the
// updated copy.
func mutate[T any](s *Server, c echo.Context, store map[string]*T, fn func(*T) error) error {
	s.mu.Lock()
	v, okk := store[c.Param("id")]
	if !okk {
		s.mu.Unlock()
		return fail(http.StatusNotFound, "record not found")
	}
	if err := fn(v); err != nil {
		s.mu.Unlock()
		return err
	}
	out := *v
	s.mu.Unlock()
	return ok(c, out)
}

func remove[T any](s *Server, c echo.Context, store map[string]*T) error {
	s.mu.Lock()
	id := c.Param("id")
	_, okk := store[id]
	delete(store, id)
	s.mu.Unlock()
	if !okk {
		return fail(http.StatusNotFound, "record not found")
	}
	return ok(c, map[string]any{"id": id})
}

func statusFilter[T any](c echo.Context, get func(*T) string) func(*T) bool {
	want := c.QueryParam("status")
	if want == "" {
		return nil
	}
	return func(v *T) bool { return strings.EqualFold(get(v), want) }
}

func and[T any](fs ...func(*T) bool) func(*T) bool {
	return func(v *T) bool {
		for _, f := range fs {
			if f != nil && !f(v) {
				return false
			}
		}
		return true
	}
}

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

func (s *Server) listPatients(c echo.Context) error {
	search := strings.ToLower(c.QueryParam("search"))
	match := func(p *gateway.Patient) bool {
		if search == "" {
			return true
		}
		hay := strings.ToLower(p.FirstName + " " + p.LastName + " " + p.Email)
		return strings.Contains(hay, search)
	}
	return collect(s, c, s.patients, func(p *gateway.Patient) string { return p.ID }, match)
}

func (s *Server) createPatient(c echo.Context) error {
	var p gateway.Patient
	if err := c.Bind(&p); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if p.FirstName == "" || p.Email == "" {
		return invalid(map[string]string{"firstName": "first name is required", "email": "email is required"})
	}
	s.mu.Lock()
	p.ID = s.nextID("pat")
	p.CreatedAt = time.Now().UTC()
	s.patients[p.ID] = &p
	s.mu.Unlock()
	return ok(c, p)
}

func (s *Server) getPatient(c echo.Context) error {
	p, err := fetch(s, c, s.patients)
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) updatePatient(c echo.Context) error {
	return mutate(s, c, s.patients, func(p *gateway.Patient) error {
		id := p.ID
		if err := c.Bind(p); err != nil {
			return fail(http.StatusBadRequest, "malformed request body")
		}
		p.ID = id
		return nil
	})
}

func (s *Server) deletePatient(c echo.Context) error {
	return remove(s, c, s.patients)
}

// ---------------------------------------------------------------------------
// Users (staff management)
// ---------------------------------------------------------------------------

func (s *Server) listUsers(c echo.Context) error {
	search := strings.ToLower(c.QueryParam("search"))
	role := c.QueryParam("role")

	s.mu.Lock()
	var all []gateway.User
	for _, acc := range s.accounts {
		u := acc.user
		if role != "" && string(u.Role) != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.FullName()+" "+u.Email), search) {
			continue
		}
		all = append(all, u)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	p := pageParams(c)
	start, end := sliceBounds(len(all), p)
	return listEnvelope(c, all[start:end], len(all), p)
}

func (s *Server) createUser(c echo.Context) error {
	var body struct {
		gateway.User
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if !body.Role.Valid() {
		return invalid(map[string]string{"role": "unknown role"})
	}
	s.mu.Lock()
	if s.findByEmail(body.Email) != nil {
		s.mu.Unlock()
		return invalid(map[string]string{"email": "email already registered"})
	}
	u := body.User
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	s.accounts[u.ID] = &account{user: u, password: body.Password}
	s.mu.Unlock()
	return ok(c, u)
}

func (s *Server) getUser(c echo.Context) error {
	s.mu.Lock()
	acc, okk := s.accounts[c.Param("id")]
	s.mu.Unlock()
	if !okk {
		return fail(http.StatusNotFound, "record not found")
	}
	return ok(c, acc.user)
}

func (s *Server) updateUser(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, okk := s.accounts[c.Param("id")]
	if !okk {
		return fail(http.StatusNotFound, "record not found")
	}
	updated := acc.user
	if err := c.Bind(&updated); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	updated.ID = acc.user.ID
	acc.user = updated
	return ok(c, updated)
}

func (s *Server) deleteUser(c echo.Context) error {
	s.mu.Lock()
	id := c.Param("id")
	_, okk := s.accounts[id]
	delete(s.accounts, id)
	s.mu.Unlock()
	if !okk {
		return fail(http.StatusNotFound, "record not found")
	}
	return ok(c, map[string]any{"id": id})
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func aptID(a *gateway.Appointment) string { return a.ID }

func (s *Server) listAppointments(c echo.Context) error {
	return collect(s, c, s.appointments, aptID,
		and(statusFilter(c, func(a *gateway.Appointment) string { return a.Status })))
}

func (s *Server) listMyAppointments(c echo.Context) error {
	me := currentUser(c).ID
	return collect(s, c, s.appointments, aptID,
		and(func(a *gateway.Appointment) bool { return a.PatientID == me },
			statusFilter(c, func(a *gateway.Appointment) string { return a.Status })))
}

func (s *Server) listPendingAppointments(c echo.Context) error {
	return collect(s, c, s.appointments, aptID,
		func(a *gateway.Appointment) bool { return a.Status == "Pending" })
}

func (s *Server) createAppointment(c echo.Context) error {
	var a gateway.Appointment
	if err := c.Bind(&a); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if a.TestType == "" || a.Date == "" {
		return invalid(map[string]string{"testType": "test type is required", "date": "date is required"})
	}
	u := currentUser(c)
	if u.Role == auth.RolePatient {
		// Patients book for themselves regardless of what the body says.
		a.PatientID = u.ID
		a.PatientName = u.FullName()
	}
	s.mu.Lock()
	a.ID = s.nextID("apt")
	a.Status = "Pending"
	a.CreatedAt = time.Now().UTC()
	s.appointments[a.ID] = &a
	s.mu.Unlock()
	return ok(c, a)
}

func (s *Server) getAppointment(c echo.Context) error {
	a, err := fetch(s, c, s.appointments)
	if err != nil {
		return err
	}
	return ok(c, a)
}

func (s *Server) updateAppointment(c echo.Context) error {
	return mutate(s, c, s.appointments, func(a *gateway.Appointment) error {
		id, status := a.ID, a.Status
		if err := c.Bind(a); err != nil {
			return fail(http.StatusBadRequest, "malformed request body")
		}
		a.ID = id
		a.Status = status // status moves through the decision endpoints only
		return nil
	})
}

func (s *Server) deleteAppointment(c echo.Context) error {
	return remove(s, c, s.appointments)
}

func (s *Server) approveAppointment(c echo.Context) error {
	var req gateway.ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	return mutate(s, c, s.appointments, func(a *gateway.Appointment) error {
		if a.Status != "Pending" {
			return fail(http.StatusConflict, "appointment is not pending")
		}
		a.Status = "Approved"
		a.Notes = req.Notes
		a.ReceptionistID = req.ReceptionistID
		return nil
	})
}

func (s *Server) rejectAppointment(c echo.Context) error {
	var req gateway.RejectionRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if req.Reason == "" {
		return invalid(map[string]string{"reason": "rejection reason is required"})
	}
	return mutate(s, c, s.appointments, func(a *gateway.Appointment) error {
		if a.Status != "Pending" {
			return fail(http.StatusConflict, "appointment is not pending")
		}
		a.Status = "Rejected"
		a.RejectReason = req.Reason
		a.ReceptionistID = req.ReceptionistID
		return nil
	})
}

func (s *Server) appointmentStatus(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return invalid(map[string]string{"status": "status is required"})
	}
	return mutate(s, c, s.appointments, func(a *gateway.Appointment) error {
		a.Status = req.Status
		return nil
	})
}

func (s *Server) homeCollectionDecision(c echo.Context) error {
	var req gateway.HomeCollectionDecision
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	return mutate(s, c, s.appointments, func(a *gateway.Appointment) error {
		if a.HomeCollection == nil || !a.HomeCollection.Requested {
			return fail(http.StatusConflict, "no home collection requested")
		}
		approved := req.Approved
		a.HomeCollection.Approved = &approved
		a.HomeCollection.CollectionDate = req.CollectionDate
		a.HomeCollection.CollectionTime = req.CollectionTime
		a.HomeCollection.AssignedCollector = req.AssignedCollector
		a.HomeCollection.Notes = req.Notes
		a.HomeCollection.ApprovedBy = req.ApprovedBy
		return nil
	})
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func repID(r *gateway.Report) string { return r.ID }

func (s *Server) listReports(c echo.Context) error {
	return collect(s, c, s.reports, repID,
		and(statusFilter(c, func(r *gateway.Report) string { return r.Status })))
}

func (s *Server) listMyReports(c echo.Context) error {
	me := currentUser(c).ID
	return collect(s, c, s.reports, repID,
		and(func(r *gateway.Report) bool { return r.PatientID == me },
			statusFilter(c, func(r *gateway.Report) string { return r.Status })))
}

func (s *Server) listPendingReports(c echo.Context) error {
	return collect(s, c, s.reports, repID,
		func(r *gateway.Report) bool { return r.Status == "Pending" })
}

func (s *Server) createReport(c echo.Context) error {
	var r gateway.Report
	if err := c.Bind(&r); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if r.PatientID == "" || r.TestType == "" {
		return invalid(map[string]string{"patientId": "patient is required", "testType": "test type is required"})
	}
	s.mu.Lock()
	r.ID = s.nextID("rep")
	if r.Status == "" {
		r.Status = "Pending"
	}
	r.CreatedAt = time.Now().UTC()
	s.reports[r.ID] = &r
	s.mu.Unlock()
	return ok(c, r)
}

func (s *Server) getReport(c echo.Context) error {
	r, err := fetch(s, c, s.reports)
	if err != nil {
		return err
	}
	if u := currentUser(c); u.Role == auth.RolePatient && r.PatientID != u.ID {
		return fail(http.StatusForbidden, "not your report")
	}
	return ok(c, r)
}

func (s *Server) updateReport(c echo.Context) error {
	return mutate(s, c, s.reports, func(r *gateway.Report) error {
		id := r.ID
		if err := c.Bind(r); err != nil {
			return fail(http.StatusBadRequest, "malformed request body")
		}
		r.ID = id
		return nil
	})
}

func (s *Server) deleteReport(c echo.Context) error {
	return remove(s, c, s.reports)
}

func (s *Server) reportStatus(c echo.Context) error {
	var req struct {
		Status     string `json:"status"`
		ReviewerID string `json:"reviewerId"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return invalid(map[string]string{"status": "status is required"})
	}
	return mutate(s, c, s.reports, func(r *gateway.Report) error {
		r.Status = req.Status
		r.ReviewerID = req.ReviewerID
		return nil
	})
}

func (s *Server) downloadReport(c echo.Context) error {
	r, err := fetch(s, c, s.reports)
	if err != nil {
		return err
	}
	if u := currentUser(c); u.Role == auth.RolePatient && r.PatientID != u.ID {
		return fail(http.StatusForbidden, "not your report")
	}
	// A minimal single-page PDF; enough for the client to save a real file.
	pdf := "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
		"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
		"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
		"trailer<</Root 1 0 R>>\n%%" + r.ID + "\n%%EOF\n"
	return c.Blob(http.StatusOK, "application/pdf", []byte(pdf))
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func payID(p *gateway.Payment) string { return p.ID }

func (s *Server) listPayments(c echo.Context) error {
	return collect(s, c, s.payments, payID,
		and(statusFilter(c, func(p *gateway.Payment) string { return p.Status })))
}

func (s *Server) listMyPayments(c echo.Context) error {
	me := currentUser(c).ID
	return collect(s, c, s.payments, payID,
		and(func(p *gateway.Payment) bool { return p.PatientID == me },
			statusFilter(c, func(p *gateway.Payment) string { return p.Status })))
}

func (s *Server) createPayment(c echo.Context) error {
	var p gateway.Payment
	if err := c.Bind(&p); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if p.PatientID == "" || p.Amount <= 0 {
		return invalid(map[string]string{"patientId": "patient is required", "amount": "amount must be positive"})
	}
	s.mu.Lock()
	p.ID = s.nextID("pay")
	if p.Status == "" {
		p.Status = "Pending"
	}
	p.CreatedAt = time.Now().UTC()
	s.payments[p.ID] = &p
	s.mu.Unlock()
	return ok(c, p)
}

func (s *Server) getPayment(c echo.Context) error {
	p, err := fetch(s, c, s.payments)
	if err != nil {
		return err
	}
	if u := currentUser(c); u.Role == auth.RolePatient && p.PatientID != u.ID {
		return fail(http.StatusForbidden, "not your payment")
	}
	return ok(c, p)
}

func (s *Server) updatePayment(c echo.Context) error {
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		id := p.ID
		if err := c.Bind(p); err != nil {
			return fail(http.StatusBadRequest, "malformed request body")
		}
		p.ID = id
		return nil
	})
}

func (s *Server) deletePayment(c echo.Context) error {
	return remove(s, c, s.payments)
}

func (s *Server) paymentStatus(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return invalid(map[string]string{"status": "status is required"})
	}
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		p.Status = req.Status
		return nil
	})
}

func (s *Server) processPayment(c echo.Context) error {
	var req struct {
		Method string `json:"method"`
	}
	_ = c.Bind(&req)
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		if p.Status != "Pending" {
			return fail(http.StatusConflict, "payment is not pending")
		}
		p.Status = "Paid"
		p.Method = req.Method
		return nil
	})
}

func (s *Server) processRefund(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		if p.Status != "Paid" {
			return fail(http.StatusConflict, "only paid payments can be refunded")
		}
		p.RefundStatus = "Requested"
		p.RefundReason = req.Reason
		return nil
	})
}

func (s *Server) refundStatus(c echo.Context) error {
	var req struct {
		Decision string `json:"decision"`
	}
	if err := c.Bind(&req); err != nil || req.Decision == "" {
		return invalid(map[string]string{"decision": "decision is required"})
	}
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		if p.RefundStatus == "" {
			return fail(http.StatusConflict, "no refund requested")
		}
		p.RefundStatus = req.Decision
		if req.Decision == "Processed" {
			p.Status = "Refunded"
		}
		return nil
	})
}

func (s *Server) makePayment(c echo.Context) error {
	var req struct {
		Method string `json:"method"`
	}
	_ = c.Bind(&req)
	me := currentUser(c)
	return mutate(s, c, s.payments, func(p *gateway.Payment) error {
		if me.Role == auth.RolePatient && p.PatientID != me.ID {
			return fail(http.StatusForbidden, "not your payment")
		}
		if p.Status != "Pending" {
			return fail(http.StatusConflict, "payment is not pending")
		}
		p.Status = "Paid"
		p.Method = req.Method
		return nil
	})
}

// ---------------------------------------------------------------------------
// Complaints
// ---------------------------------------------------------------------------

func comID(cm *gateway.Complaint) string { return cm.ID }

func (s *Server) listComplaints(c echo.Context) error {
	priority := c.QueryParam("priority")
	return collect(s, c, s.complaints, comID,
		and(statusFilter(c, func(cm *gateway.Complaint) string { return cm.Status }),
			func(cm *gateway.Complaint) bool { return priority == "" || cm.Priority == priority }))
}

func (s *Server) listMyComplaints(c echo.Context) error {
	me := currentUser(c).ID
	return collect(s, c, s.complaints, comID,
		func(cm *gateway.Complaint) bool { return cm.PatientID == me })
}

func (s *Server) listPendingComplaints(c echo.Context) error {
	return collect(s, c, s.complaints, comID,
		func(cm *gateway.Complaint) bool { return cm.Status != "Resolved" && cm.AssignedTo == "" })
}

func (s *Server) complaintStats(c echo.Context) error {
	s.mu.Lock()
	stats := gateway.ComplaintStats{ByPriority: map[string]int{}}
	for _, cm := range s.complaints {
		stats.Total++
		if cm.Status == "Resolved" {
			stats.Resolved++
		} else {
			stats.Open++
		}
		if cm.Priority != "" {
			stats.ByPriority[cm.Priority]++
		}
	}
	s.mu.Unlock()
	return ok(c, stats)
}

func (s *Server) createComplaint(c echo.Context) error {
	var cm gateway.Complaint
	if err := c.Bind(&cm); err != nil {
		return fail(http.StatusBadRequest, "malformed request body")
	}
	if cm.Subject == "" {
		return invalid(map[string]string{"subject": "subject is required"})
	}
	u := currentUser(c)
	if u.Role == auth.RolePatient {
		cm.PatientID = u.ID
	}
	s.mu.Lock()
	cm.ID = s.nextID("com")
	cm.Status = "Open"
	cm.CreatedAt = time.Now().UTC()
	s.complaints[cm.ID] = &cm
	s.mu.Unlock()
	return ok(c, cm)
}

func (s *Server) getComplaint(c echo.Context) error {
	cm, err := fetch(s, c, s.complaints)
	if err != nil {
		return err
	}
	if u := currentUser(c); u.Role == auth.RolePatient && cm.PatientID != u.ID {
		return fail(http.StatusForbidden, "not your complaint")
	}
	return ok(c, cm)
}

func (s *Server) updateComplaint(c echo.Context) error {
	return mutate(s, c, s.complaints, func(cm *gateway.Complaint) error {
		id, status := cm.ID, cm.Status
		if err := c.Bind(cm); err != nil {
			return fail(http.StatusBadRequest, "malformed request body")
		}
		cm.ID = id
		cm.Status = status
		return nil
	})
}

func (s *Server) deleteComplaint(c echo.Context) error {
	return remove(s, c, s.complaints)
}

func (s *Server) assignComplaint(c echo.Context) error {
	var req gateway.AssignRequest
	if err := c.Bind(&req); err != nil || req.AssignedTo == "" {
		return invalid(map[string]string{"assignedTo": "assignee is required"})
	}
	return mutate(s, c, s.complaints, func(cm *gateway.Complaint) error {
		if cm.Status == "Resolved" {
			return fail(http.StatusConflict, "complaint already resolved")
		}
		cm.AssignedTo = req.AssignedTo
		cm.Status = "In Progress"
		return nil
	})
}

func (s *Server) resolveComplaint(c echo.Context) error {
	var req gateway.ResolveRequest
	if err := c.Bind(&req); err != nil || req.Resolution == "" {
		return invalid(map[string]string{"resolution": "resolution is required"})
	}
	return mutate(s, c, s.complaints, func(cm *gateway.Complaint) error {
		if cm.Status == "Resolved" {
			return fail(http.StatusConflict, "complaint already resolved")
		}
		cm.Status = "Resolved"
		cm.Resolution = req.Resolution
		cm.ResolutionNotes = req.ResolutionNotes
		cm.ResolvedBy = req.ResolvedBy
		return nil
	})
}

func (s *Server) complaintPriority(c echo.Context) error {
	var req struct {
		Priority string `json:"priority"`
	}
	if err := c.Bind(&req); err != nil || req.Priority == "" {
		return invalid(map[string]string{"priority": "priority is required"})
	}
	return mutate(s, c, s.complaints, func(cm *gateway.Complaint) error {
		cm.Priority = req.Priority
		return nil
	})
}

func (s *Server) commentComplaint(c echo.Context) error {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil || req.Comment == "" {
		return invalid(map[string]string{"comment": "comment is required"})
	}
	author := currentUser(c).FullName()
	return mutate(s, c, s.complaints, func(cm *gateway.Complaint) error {
		cm.Comments = append(cm.Comments, gateway.ComplaintComment{
			Author:    author,
			Comment:   req.Comment,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}
