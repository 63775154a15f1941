package gateway

import (
	"context"
	"io"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// ReportService wraps the /reports endpoints, including the binary PDF
// download.
type ReportService struct {
	client *transport.Client
	audit  *activity.Logger
	caller CallerFunc
}

// GetAll lists reports. Patients are routed to /reports/mine, staff to
// /reports.
func (s *ReportService) GetAll(ctx context.Context, q Query) (*ReportList, error) {
	return s.list(ctx, s.caller().CollectionPath("reports"), q)
}

// GetMy always reads the caller's own reports.
func (s *ReportService) GetMy(ctx context.Context, q Query) (*ReportList, error) {
	return s.list(ctx, "/reports/mine", q)
}

// GetPending lists reports awaiting review.
func (s *ReportService) GetPending(ctx context.Context, q Query) (*ReportList, error) {
	return s.list(ctx, "/reports/pending", q)
}

func (s *ReportService) list(ctx context.Context, path string, q Query) (*ReportList, error) {
	var out ReportList
	if err := s.client.Get(ctx, path+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("reports", search, len(out.Data))
	}
	return &out, nil
}

func (s *ReportService) GetByID(ctx context.Context, id string) (*Report, error) {
	var out struct {
		Data *Report `json:"data"`
	}
	if err := s.client.Get(ctx, "/reports/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "reports", id, nil)
	return out.Data, nil
}

func (s *ReportService) Create(ctx context.Context, body map[string]any) (*Report, error) {
	var out struct {
		Data *Report `json:"data"`
	}
	if err := s.client.Post(ctx, "/reports", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "reports", out.Data.ID, body)
	return out.Data, nil
}

func (s *ReportService) Update(ctx context.Context, id string, body map[string]any) (*Report, error) {
	var out struct {
		Data *Report `json:"data"`
	}
	if err := s.client.Put(ctx, "/reports/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "reports", id, body)
	return out.Data, nil
}

func (s *ReportService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/reports/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "reports", id, nil)
	return nil
}

// UpdateStatus moves a report through review.
func (s *ReportService) UpdateStatus(ctx context.Context, id, status, reviewerID string) (*Report, error) {
	body := map[string]any{"status": status, "reviewerId": reviewerID}
	var out struct {
		Data *Report `json:"data"`
	}
	if err := s.client.Put(ctx, "/reports/"+id+"/status", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "reports", id, body)
	return out.Data, nil
}

// Download streams the report PDF. The caller saves and closes the stream.
func (s *ReportService) Download(ctx context.Context, id string) (io.ReadCloser, string, error) {
	body, contentType, err := s.client.Download(ctx, "/reports/"+id+"/download")
	if err != nil {
		return nil, "", err
	}
	s.audit.Resource(activity.KindReadResource, "reports", id, nil)
	return body, contentType, nil
}
