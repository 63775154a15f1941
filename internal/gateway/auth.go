package gateway

import (
	"context"

	"github.com/smartlab/smartlab/internal/platform/transport"
)

// AuthService wraps the /auth endpoints. It holds no session state; the
// session controller owns that.
type AuthService struct {
	client *transport.Client
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChange is the /auth/password request body.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the credential-exchange envelope: a bearer token plus the
// user record it belongs to.
type AuthResponse struct {
	Token string `json:"token"`
	Data  struct {
		User *User `json:"user"`
	} `json:"data"`
}

// userEnvelope wraps endpoints that return a bare user record.
type userEnvelope struct {
	Data struct {
		User *User `json:"user"`
	} `json:"data"`
}

func (s *AuthService) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := s.client.Post(ctx, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a patient account. The body is a flat map because the
// registration form is assembled per screen; the backend validates it.
func (s *AuthService) Register(ctx context.Context, body map[string]any) (*AuthResponse, error) {
	var out AuthResponse
	if err := s.client.Post(ctx, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.client.Post(ctx, "/auth/logout", nil, nil)
}

func (s *AuthService) GetMe(ctx context.Context) (*User, error) {
	var out userEnvelope
	if err := s.client.Get(ctx, "/auth/me", &out); err != nil {
		return nil, err
	}
	return out.Data.User, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, body map[string]any) (*User, error) {
	var out userEnvelope
	if err := s.client.Put(ctx, "/auth/profile", body, &out); err != nil {
		return nil, err
	}
	return out.Data.User, nil
}

// ChangePassword exchanges the current password for a new one. The backend
// returns a fresh token alongside the updated user.
func (s *AuthService) ChangePassword(ctx context.Context, change PasswordChange) (*AuthResponse, error) {
	var out AuthResponse
	if err := s.client.Put(ctx, "/auth/password", change, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
