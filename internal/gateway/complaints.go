package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// ComplaintService wraps the /complaints endpoints: filing, triage,
// assignment, resolution, and the stats dashboard.
type ComplaintService struct {
	client *transport.Client
	audit  *activity.Logger
	caller CallerFunc
}

// AssignRequest hands a complaint to a staff member.
type AssignRequest struct {
	AssignedTo string `json:"assignedTo"`
	Notes      string `json:"notes,omitempty"`
}

// ResolveRequest closes a complaint.
type ResolveRequest struct {
	Resolution      string `json:"resolution"`
	ResolutionNotes string `json:"resolutionNotes,omitempty"`
	ResolvedBy      string `json:"resolvedBy"`
}

// GetAll lists complaints. Patients are routed to /complaints/mine, staff
// to /complaints.
func (s *ComplaintService) GetAll(ctx context.Context, q Query) (*ComplaintList, error) {
	return s.list(ctx, s.caller().CollectionPath("complaints"), q)
}

// GetMy always reads the caller's own complaints.
func (s *ComplaintService) GetMy(ctx context.Context, q Query) (*ComplaintList, error) {
	return s.list(ctx, "/complaints/mine", q)
}

// GetPending lists complaints not yet assigned or resolved.
func (s *ComplaintService) GetPending(ctx context.Context, q Query) (*ComplaintList, error) {
	return s.list(ctx, "/complaints/pending", q)
}

func (s *ComplaintService) list(ctx context.Context, path string, q Query) (*ComplaintList, error) {
	var out ComplaintList
	if err := s.client.Get(ctx, path+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("complaints", search, len(out.Data))
	}
	return &out, nil
}

// GetStats fetches the aggregate dashboard block.
func (s *ComplaintService) GetStats(ctx context.Context) (*ComplaintStats, error) {
	var out struct {
		Data *ComplaintStats `json:"data"`
	}
	if err := s.client.Get(ctx, "/complaints/stats", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (s *ComplaintService) GetByID(ctx context.Context, id string) (*Complaint, error) {
	var out struct {
		Data *Complaint `json:"data"`
	}
	if err := s.client.Get(ctx, "/complaints/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "complaints", id, nil)
	return out.Data, nil
}

func (s *ComplaintService) Create(ctx context.Context, body map[string]any) (*Complaint, error) {
	var out struct {
		Data *Complaint `json:"data"`
	}
	if err := s.client.Post(ctx, "/complaints", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "complaints", out.Data.ID, body)
	return out.Data, nil
}

func (s *ComplaintService) Update(ctx context.Context, id string, body map[string]any) (*Complaint, error) {
	var out struct {
		Data *Complaint `json:"data"`
	}
	if err := s.client.Put(ctx, "/complaints/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "complaints", id, body)
	return out.Data, nil
}

func (s *ComplaintService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/complaints/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "complaints", id, nil)
	return nil
}

func (s *ComplaintService) Assign(ctx context.Context, id string, req AssignRequest) (*Complaint, error) {
	return s.put(ctx, id, "/assign", req)
}

func (s *ComplaintService) Resolve(ctx context.Context, id string, req ResolveRequest) (*Complaint, error) {
	return s.put(ctx, id, "/resolve", req)
}

func (s *ComplaintService) UpdatePriority(ctx context.Context, id, priority string) (*Complaint, error) {
	return s.put(ctx, id, "/priority", map[string]any{"priority": priority})
}

// AddComment appends to the complaint's comment thread.
func (s *ComplaintService) AddComment(ctx context.Context, id, comment string) (*Complaint, error) {
	var out struct {
		Data *Complaint `json:"data"`
	}
	body := map[string]any{"comment": comment}
	if err := s.client.Post(ctx, "/complaints/"+id+"/comment", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "complaints", id, body)
	return out.Data, nil
}

func (s *ComplaintService) put(ctx context.Context, id, action string, body any) (*Complaint, error) {
	var out struct {
		Data *Complaint `json:"data"`
	}
	if err := s.client.Put(ctx, "/complaints/"+id+action, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "complaints", id, asMap(body))
	return out.Data, nil
}
