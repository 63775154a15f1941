package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// UserService wraps the superadmin-only /users endpoints for staff account
// management.
type UserService struct {
	client *transport.Client
	audit  *activity.Logger
}

func (s *UserService) GetAll(ctx context.Context, q Query) (*UserList, error) {
	var out UserList
	if err := s.client.Get(ctx, "/users"+q.encode(), &out); err != nil {
		return nil, err
	}
	if search := q["search"]; search != "" {
		s.audit.Search("users", search, len(out.Data))
	}
	return &out, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*User, error) {
	var out struct {
		Data *User `json:"data"`
	}
	if err := s.client.Get(ctx, "/users/"+id, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindReadResource, "users", id, nil)
	return out.Data, nil
}

// Create provisions a staff account (receptionists); patient accounts come
// from self-service registration.
func (s *UserService) Create(ctx context.Context, body map[string]any) (*User, error) {
	var out struct {
		Data *User `json:"data"`
	}
	if err := s.client.Post(ctx, "/users", body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindCreateResource, "users", out.Data.ID, body)
	return out.Data, nil
}

func (s *UserService) Update(ctx context.Context, id string, body map[string]any) (*User, error) {
	var out struct {
		Data *User `json:"data"`
	}
	if err := s.client.Put(ctx, "/users/"+id, body, &out); err != nil {
		return nil, err
	}
	s.audit.Resource(activity.KindUpdateResource, "users", id, body)
	return out.Data, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "/users/"+id, nil); err != nil {
		return err
	}
	s.audit.Resource(activity.KindDeleteResource, "users", id, nil)
	return nil
}
