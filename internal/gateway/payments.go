package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// PaymentService wraps the /payments endpoints, including the refund
// sub-workflow (Requested → Approved | Rejected → Processed | Failed).
type PaymentService struct {
	client *transport.Client
	audit  *activity.Logger
	caller CallerFunc
}

// GetAll lists payments. Patients are routed to /payments/mine, staff to
// /payments.
func (s *PaymentService) GetAll(ctx context.Context, q Query) (*PaymentList, error) {
	return s.list(ctx, s.caller().CollectionPath("payments"), q)
}

// GetMy always reads the caller's own payments.
func (s *PaymentService) GetMy(ctx context.Context, q Query) (*PaymentList, error) {
	return s.list(ctx, "/payments/mine", q)
}

func (s *PaymentService) list(ctx context.Context, path string, q Query) (*PaymentList, error) {
	var out PaymentList
	if err := s.client.Get(ctx, path+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("payments", search, len(out.Data))
	}
	return &out, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id string) (*Payment, error) {
	var out struct {
		Data *Payment `json:"data"`
	}
	if err := s.client.Get(ctx, "/payments/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "payments", id, nil)
	return out.Data, nil
}

func (s *PaymentService) Create(ctx context.Context, body map[string]any) (*Payment, error) {
	var out struct {
		Data *Payment `json:"data"`
	}
	if err := s.client.Post(ctx, "/payments", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "payments", out.Data.ID, body)
	return out.Data, nil
}

func (s *PaymentService) Update(ctx context.Context, id string, body map[string]any) (*Payment, error) {
	var out struct {
		Data *Payment `json:"data"`
	}
	if err := s.client.Put(ctx, "/payments/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "payments", id, body)
	return out.Data, nil
}

func (s *PaymentService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/payments/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "payments", id, nil)
	return nil
}

// UpdateStatus settles a payment's top-level status.
func (s *PaymentService) UpdateStatus(ctx context.Context, id, status, actorID string) (*Payment, error) {
	return s.put(ctx, id, "/status", map[string]any{"status": status, "actorId": actorID})
}

// ProcessPayment records a staff-side payment capture.
func (s *PaymentService) ProcessPayment(ctx context.Context, id string, body map[string]any) (*Payment, error) {
	return s.put(ctx, id, "/process", body)
}

// ProcessRefund opens or executes a refund for a paid payment.
func (s *PaymentService) ProcessRefund(ctx context.Context, id string, body map[string]any) (*Payment, error) {
	return s.put(ctx, id, "/refund", body)
}

// UpdateRefundStatus moves the refund sub-state.
func (s *PaymentService) UpdateRefundStatus(ctx context.Context, id, decision, actorID string) (*Payment, error) {
	return s.put(ctx, id, "/refund/status", map[string]any{"decision": decision, "actorId": actorID})
}

// MakePayment is the patient-side settlement of their own pending payment.
func (s *PaymentService) MakePayment(ctx context.Context, id string, body map[string]any) (*Payment, error) {
	return s.put(ctx, id, "/pay", body)
}

func (s *PaymentService) put(ctx context.Context, id, action string, body map[string]any) (*Payment, error) {
	var out struct {
		Data *Payment `json:"data"`
	}
	if err := s.client.Put(ctx, "/payments/"+id+action, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "payments", id, body)
	return out.Data, nil
}
