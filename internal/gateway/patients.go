package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// PatientService wraps the /patients endpoints. Patients are a staff-managed
// collection; there is no /mine listing.
type PatientService struct {
	client *transport.Client
	audit  *activity.Logger
}

func (s *PatientService) GetAll(ctx context.Context, q Query) (*PatientList, error) {
	var out PatientList
	if err := s.client.Get(ctx, "/patients"+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("patients", search, len(out.Data))
	}
	return &out, nil
}

func (s *PatientService) GetByID(ctx context.Context, id string) (*Patient, error) {
	var out struct {
		Data *Patient `json:"data"`
	}
	if err := s.client.Get(ctx, "/patients/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "patients", id, nil)
	return out.Data, nil
}

func (s *PatientService) Create(ctx context.Context, body map[string]any) (*Patient, error) {
	var out struct {
		Data *Patient `json:"data"`
	}
	if err := s.client.Post(ctx, "/patients", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "patients", out.Data.ID, body)
	return out.Data, nil
}

func (s *PatientService) Update(ctx context.Context, id string, body map[string]any) (*Patient, error) {
	var out struct {
		Data *Patient `json:"data"`
	}
	if err := s.client.Put(ctx, "/patients/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "patients", id, body)
	return out.Data, nil
}

func (s *PatientService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/patients/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "patients", id, nil)
	return nil
}
