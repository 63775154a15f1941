package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// recorder captures the last request and replies with a canned payload.
type recorder struct {
	method string
	path   string // includes query string
	body   map[string]any
	reply  string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.method = req.Method
	r.path = req.URL.RequestURI()
	r.body = nil
	_ = json.NewDecoder(req.Body).Decode(&r.body)
	w.Header().Set("Content-Type", "application/json")
	reply := r.reply
	if reply == "" {
		reply = `{"data":{}}`
	}
	w.Write([]byte(reply))
}

func newTestGateway(t *testing.T, rec *recorder, caller Caller) *Gateway {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	client := transport.New(transport.Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	audit := activity.New(activity.Options{Enabled: false, Logger: zerolog.Nop()})
	return New(client, audit, func() Caller { return caller })
}

func patientCaller() Caller {
	return CallerFor(&User{ID: "u1", Role: auth.RolePatient})
}

func staffCaller() Caller {
	return CallerFor(&User{ID: "r9", Role: auth.RoleReceptionist})
}

func TestCallerFor(t *testing.T) {
	if _, ok := patientCaller().(SelfCaller); !ok {
		t.Error("patient should be a Self caller")
	}
	if _, ok := staffCaller().(StaffCaller); !ok {
		t.Error("receptionist should be a Staff caller")
	}
	if _, ok := CallerFor(&User{Role: auth.RoleSuperadmin}).(StaffCaller); !ok {
		t.Error("superadmin should be a Staff caller")
	}
	if _, ok := CallerFor(nil).(StaffCaller); !ok {
		t.Error("anonymous defaults to the base collection")
	}
}

// A patient listing payments is dispatched to /payments/mine with the
// filters intact; staff hit the base collection.
func TestRoleScopedEndpointSelection(t *testing.T) {
	rec := &recorder{reply: `{"data":[],"total":0,"page":1,"pages":0}`}

	gw := newTestGateway(t, rec, patientCaller())
	if _, err := gw.Payments.GetAll(context.Background(), Query{"status": "Pending"}); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if rec.path != "/payments/mine?status=Pending" {
		t.Fatalf("patient path = %q; want /payments/mine?status=Pending", rec.path)
	}

	gw = newTestGateway(t, rec, staffCaller())
	if _, err := gw.Payments.GetAll(context.Background(), Query{"status": "Pending"}); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if rec.path != "/payments?status=Pending" {
		t.Fatalf("staff path = %q; want /payments?status=Pending", rec.path)
	}
}

func TestMineSelectionCoversAllDualEntities(t *testing.T) {
	rec := &recorder{reply: `{"data":[],"total":0,"page":1,"pages":0}`}
	gw := newTestGateway(t, rec, patientCaller())
	ctx := context.Background()

	calls := []struct {
		name string
		call func() error
		want string
	}{
		{"appointments", func() error { _, err := gw.Appointments.GetAll(ctx, nil); return err }, "/appointments/mine"},
		{"reports", func() error { _, err := gw.Reports.GetAll(ctx, nil); return err }, "/reports/mine"},
		{"payments", func() error { _, err := gw.Payments.GetAll(ctx, nil); return err }, "/payments/mine"},
		{"complaints", func() error { _, err := gw.Complaints.GetAll(ctx, nil); return err }, "/complaints/mine"},
	}
	for _, tc := range calls {
		if err := tc.call(); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if rec.path != tc.want {
			t.Errorf("%s path = %q; want %q", tc.name, rec.path, tc.want)
		}
	}
}

// Receptionist approval: PUT to the approve sub-path carrying the body,
// decoded payload handed back, no session involvement.
func TestAppointmentApprove(t *testing.T) {
	rec := &recorder{reply: `{"data":{"id":"a1","status":"Approved"}}`}
	gw := newTestGateway(t, rec, staffCaller())

	appt, err := gw.Appointments.Approve(context.Background(), "a1", ApprovalRequest{
		Notes:          "OK",
		ReceptionistID: "r9",
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.method != http.MethodPut || rec.path != "/appointments/a1/approve" {
		t.Fatalf("dispatched %s %s", rec.method, rec.path)
	}
	if rec.body["notes"] != "OK" || rec.body["receptionistId"] != "r9" {
		t.Fatalf("body = %v", rec.body)
	}
	if appt.ID != "a1" || appt.Status != "Approved" {
		t.Fatalf("decoded = %+v", appt)
	}
}

func TestQueryEncoding(t *testing.T) {
	cases := []struct {
		name string
		q    Query
		want string
	}{
		{"nil", nil, ""},
		{"empty", Query{}, ""},
		{"blank values dropped", Query{"status": ""}, ""},
		{"sorted", Query{"status": "Pending", "priority": "high"}, "?priority=high&status=Pending"},
		{"escaped", Query{"search": "a b"}, "?search=a+b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.encode(); got != tc.want {
				t.Fatalf("encode() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestWithPage(t *testing.T) {
	q := Query{"status": "Pending"}.WithPage(0, 500)
	if q["page"] != "1" || q["limit"] != "100" {
		t.Fatalf("WithPage = %v", q)
	}
	if q["status"] != "Pending" {
		t.Fatal("WithPage must preserve existing filters")
	}
}

func TestEntityVerbPaths(t *testing.T) {
	rec := &recorder{reply: `{"data":{"id":"x"}}`}
	gw := newTestGateway(t, rec, staffCaller())
	ctx := context.Background()

	steps := []struct {
		name       string
		call       func() error
		method     string
		path       string
	}{
		{"appointment reject", func() error {
			_, err := gw.Appointments.Reject(ctx, "a1", RejectionRequest{Reason: "no slot", ReceptionistID: "r9"})
			return err
		}, "PUT", "/appointments/a1/reject"},
		{"appointment status", func() error {
			_, err := gw.Appointments.UpdateStatus(ctx, "a1", "Completed")
			return err
		}, "PUT", "/appointments/a1/status"},
		{"home collection", func() error {
			_, err := gw.Appointments.ApproveHomeCollection(ctx, "a1", HomeCollectionDecision{Approved: true, ApprovedBy: "r9"})
			return err
		}, "PUT", "/appointments/a1/home-collection"},
		{"report status", func() error {
			_, err := gw.Reports.UpdateStatus(ctx, "rep1", "Reviewed", "r9")
			return err
		}, "PUT", "/reports/rep1/status"},
		{"payment refund", func() error {
			_, err := gw.Payments.ProcessRefund(ctx, "p1", map[string]any{"reason": "cancelled"})
			return err
		}, "PUT", "/payments/p1/refund"},
		{"refund status", func() error {
			_, err := gw.Payments.UpdateRefundStatus(ctx, "p1", "Approved", "sa1")
			return err
		}, "PUT", "/payments/p1/refund/status"},
		{"make payment", func() error {
			_, err := gw.Payments.MakePayment(ctx, "p1", map[string]any{"method": "card"})
			return err
		}, "PUT", "/payments/p1/pay"},
		{"complaint assign", func() error {
			_, err := gw.Complaints.Assign(ctx, "c1", AssignRequest{AssignedTo: "r9"})
			return err
		}, "PUT", "/complaints/c1/assign"},
		{"complaint resolve", func() error {
			_, err := gw.Complaints.Resolve(ctx, "c1", ResolveRequest{Resolution: "refunded", ResolvedBy: "r9"})
			return err
		}, "PUT", "/complaints/c1/resolve"},
		{"complaint priority", func() error {
			_, err := gw.Complaints.UpdatePriority(ctx, "c1", "high")
			return err
		}, "PUT", "/complaints/c1/priority"},
		{"complaint comment", func() error {
			_, err := gw.Complaints.AddComment(ctx, "c1", "following up")
			return err
		}, "POST", "/complaints/c1/comment"},
	}
	for _, tc := range steps {
		if err := tc.call(); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if rec.method != tc.method || rec.path != tc.path {
			t.Errorf("%s dispatched %s %s; want %s %s", tc.name, rec.method, rec.path, tc.method, tc.path)
		}
	}
}

// Errors pass through the facades untouched so per-form code can map
// validation fields.
func TestErrorsPropagateUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"message":"invalid","errors":[{"param":"testType","msg":"required"}]}`))
	}))
	defer srv.Close()
	client := transport.New(transport.Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	audit := activity.New(activity.Options{Enabled: false, Logger: zerolog.Nop()})
	gw := New(client, audit, func() Caller { return staffCaller() })

	_, err := gw.Appointments.Create(context.Background(), map[string]any{})
	if transport.KindOf(err) != transport.KindValidation {
		t.Fatalf("kind = %v; want validation", transport.KindOf(err))
	}
	fields := transport.ValidationFields(err)
	if len(fields) != 1 || fields[0].Name() != "testType" {
		t.Fatalf("fields = %v", fields)
	}
}
