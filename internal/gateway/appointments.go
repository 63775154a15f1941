package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// AppointmentService wraps the /appointments endpoints, including the
// approval and home-collection sub-workflows.
type AppointmentService struct {
	client *transport.Client
	audit  *activity.Logger
	caller CallerFunc
}

// ApprovalRequest carries the receptionist's approval.
type ApprovalRequest struct {
	Notes          string `json:"notes,omitempty"`
	ReceptionistID string `json:"receptionistId"`
}

// RejectionRequest carries the receptionist's rejection.
type RejectionRequest struct {
	Reason         string `json:"reason"`
	ReceptionistID string `json:"receptionistId"`
}

// HomeCollectionDecision settles a home-collection request.
type HomeCollectionDecision struct {
	Approved          bool   `json:"approved"`
	CollectionDate    string `json:"collectionDate,omitempty"`
	CollectionTime    string `json:"collectionTime,omitempty"`
	AssignedCollector string `json:"assignedCollector,omitempty"`
	Notes             string `json:"notes,omitempty"`
	ApprovedBy        string `json:"approvedBy"`
}

// GetAll lists appointments. Patients are routed to /appointments/mine,
// staff to /appointments.
func (s *AppointmentService) GetAll(ctx context.Context, q Query) (*AppointmentList, error) {
	return s.list(ctx, s.caller().CollectionPath("appointments"), q)
}

// GetMy always reads the caller's own appointments.
func (s *AppointmentService) GetMy(ctx context.Context, q Query) (*AppointmentList, error) {
	return s.list(ctx, "/appointments/mine", q)
}

// GetPending lists appointments awaiting a receptionist decision.
func (s *AppointmentService) GetPending(ctx context.Context, q Query) (*AppointmentList, error) {
	return s.list(ctx, "/appointments/pending", q)
}

func (s *AppointmentService) list(ctx context.Context, path string, q Query) (*AppointmentList, error) {
	var out AppointmentList
	if err := s.client.Get(ctx, path+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("appointments", search, len(out.Data))
	}
	return &out, nil
}

func (s *AppointmentService) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var out struct {
		Data *Appointment `json:"data"`
	}
	if err := s.client.Get(ctx, "/appointments/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "appointments", id, nil)
	return out.Data, nil
}

func (s *AppointmentService) Create(ctx context.Context, body map[string]any) (*Appointment, error) {
	var out struct {
		Data *Appointment `json:"data"`
	}
	if err := s.client.Post(ctx, "/appointments", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "appointments", out.Data.ID, body)
	return out.Data, nil
}

func (s *AppointmentService) Update(ctx context.Context, id string, body map[string]any) (*Appointment, error) {
	var out struct {
		Data *Appointment `json:"data"`
	}
	if err := s.client.Put(ctx, "/appointments/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "appointments", id, body)
	return out.Data, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/appointments/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "appointments", id, nil)
	return nil
}

// Approve settles a pending appointment. No session state changes; the
// decoded appointment is returned to the caller.
func (s *AppointmentService) Approve(ctx context.Context, id string, req ApprovalRequest) (*Appointment, error) {
	return s.decide(ctx, id, "/approve", req)
}

func (s *AppointmentService) Reject(ctx context.Context, id string, req RejectionRequest) (*Appointment, error) {
	return s.decide(ctx, id, "/reject", req)
}

func (s *AppointmentService) UpdateStatus(ctx context.Context, id, status string) (*Appointment, error) {
	return s.decide(ctx, id, "/status", map[string]any{"status": status})
}

// ApproveHomeCollection settles the home-collection sub-state.
func (s *AppointmentService) ApproveHomeCollection(ctx context.Context, id string, req HomeCollectionDecision) (*Appointment, error) {
	return s.decide(ctx, id, "/home-collection", req)
}

func (s *AppointmentService) decide(ctx context.Context, id, action string, body any) (*Appointment, error) {
	var out struct {
		Data *Appointment `json:"data"`
	}
	if err := s.client.Put(ctx, "/appointments/"+id+action, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "appointments", id, asMap(body))
	return out.Data, nil
}
