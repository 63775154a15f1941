// Package session owns the current user record and bearer token. It
// mediates login, registration, logout, profile update and password
// change, keeps the token store in sync with its own state, and emits
// audit events for every identity transition.
//
// The session is either fully initialized (token and user both present)
// or empty (both absent); the transient loading state exists only until
// the first rehydration attempt completes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/internal/platform/tokenstore"
	"github.com/smartlab/smartlab/internal/platform/transport"
)

// Result is the outcome handed back to login/profile/password screens.
type Result struct {
	Success bool
	Message string
}

// RegisterResult additionally carries the backend's field errors so the
// registration form can map them onto inputs.
type RegisterResult struct {
	Success bool
	Message string
	Errors  []transport.FieldError
}

// Controller is the process-wide session. All state behind the mutex; the
// transport and guard receive the controller as a capability handle rather
// than reaching into globals.
type Controller struct {
	mu      sync.Mutex
	user    *gateway.User
	token   string
	loading bool

	store tokenstore.Store
	auths *gateway.AuthService
	audit *activity.Logger
	log   zerolog.Logger
}

// New returns a controller in the initial loading state. BindAuth must be
// called before any operation that talks to the backend.
func New(store tokenstore.Store, audit *activity.Logger, log zerolog.Logger) *Controller {
	return &Controller{
		loading: true,
		store:   store,
		audit:   audit,
		log:     log,
	}
}

// BindAuth attaches the auth facade. Separate from New because the facade
// is built over a transport that needs the controller's token source and
// auth-failure callback first.
func (c *Controller) BindAuth(auths *gateway.AuthService) {
	c.auths = auths
}

// Token yields the current bearer token; it is the transport's TokenSource.
func (c *Controller) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

// User returns the current user record, nil when anonymous.
func (c *Controller) User() *gateway.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Loading reports whether the startup rehydration is still in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Authenticated reports whether a user has been admitted.
func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil
}

// Role returns the current user's role, empty when anonymous.
func (c *Controller) Role() auth.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return ""
	}
	return c.user.Role
}

// Caller wraps the current user for the gateway's endpoint selection.
func (c *Controller) Caller() gateway.Caller {
	return gateway.CallerFor(c.User())
}

// TokenExpiry decodes the JWT exp claim without verifying the signature
// (verification is the server's job). Returns false when no token is held
// or the token is not a JWT.
func (c *Controller) TokenExpiry() (time.Time, bool) {
	tok, ok := c.Token()
	if !ok {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Bootstrap rebuilds the session from a persisted token. Any failure
// leaves the session anonymous with the stale token cleared; the loading
// flag is cleared on every path.
func (c *Controller) Bootstrap(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	tok, ok := c.store.Get()
	if !ok {
		return
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()

	user, err := c.auths.GetMe(ctx)
	if err != nil {
		// A 401 already cleared state through the transport callback;
		// clear again for any other failure so no stale token survives.
		c.log.Debug().Err(err).Msg("session rehydration failed")
		c.clearState()
		return
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	c.audit.SetUser(user.ID)
}

// Login exchanges credentials for a session. On success the token reaches
// the store before the user record is installed, so anything reacting to
// the user write already sees a valid token.
func (c *Controller) Login(ctx context.Context, email, password string) Result {
	if email == "" || password == "" {
		return Result{Message: "email and password are required"}
	}

	resp, err := c.auths.Login(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		c.audit.UserLogin(email, false, err.Error())
		return Result{Message: errMessage(err, "login failed")}
	}

	c.install(resp.Token, resp.Data.User)
	c.audit.UserLogin(email, true, "")
	c.log.Info().Str("role", string(resp.Data.User.Role)).Msg("user logged in")
	return Result{Success: true}
}

// Register creates a patient account and admits it in one step. The
// password policy is pre-validated client-side; everything else is the
// backend's call and its field errors are passed through.
func (c *Controller) Register(ctx context.Context, userData map[string]any) RegisterResult {
	email, _ := userData["email"].(string)
	password, _ := userData["password"].(string)
	if err := ValidatePassword(password); err != nil {
		return RegisterResult{
			Message: err.Error(),
			Errors:  []transport.FieldError{{Field: "password", Message: err.Error()}},
		}
	}

	resp, err := c.auths.Register(ctx, userData)
	if err != nil {
		c.audit.UserRegistration(email, "patient", false, err.Error())
		return RegisterResult{
			Message: errMessage(err, "registration failed"),
			Errors:  transport.ValidationFields(err),
		}
	}

	c.install(resp.Token, resp.Data.User)
	c.audit.UserRegistration(email, string(resp.Data.User.Role), true, "")
	return RegisterResult{Success: true}
}

// Logout emits its audit event before clearing state, while the identity
// is still known, then clears locally and notifies the backend
// best-effort.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return
	}

	c.audit.UserLogout(user.Email)
	c.clearState()

	if err := c.auths.Logout(ctx); err != nil {
		c.log.Debug().Err(err).Msg("backend logout failed")
	}
}

// UpdateProfile replaces the user record on success. The token is
// untouched.
func (c *Controller) UpdateProfile(ctx context.Context, body map[string]any) Result {
	user, err := c.auths.UpdateProfile(ctx, body)
	if err != nil {
		return Result{Message: errMessage(err, "profile update failed")}
	}
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	return Result{Success: true}
}

// ChangePassword installs the fresh token the backend returns atomically
// with the updated user record.
func (c *Controller) ChangePassword(ctx context.Context, current, newPassword string) Result {
	if err := ValidatePassword(newPassword); err != nil {
		return Result{Message: err.Error()}
	}
	c.mu.Lock()
	email := ""
	if c.user != nil {
		email = c.user.Email
	}
	c.mu.Unlock()

	resp, err := c.auths.ChangePassword(ctx, gateway.PasswordChange{
		CurrentPassword: current,
		NewPassword:     newPassword,
	})
	if err != nil {
		c.audit.PasswordChange(email, false, err.Error())
		return Result{Message: errMessage(err, "password change failed")}
	}

	c.install(resp.Token, resp.Data.User)
	c.audit.PasswordChange(email, true, "")
	return Result{Success: true}
}

// Invalidate is the 401 transition: the transport calls it when any
// request is rejected. Idempotent, so concurrent rejections collapse into
// one transition and one store clear.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	already := c.user == nil && c.token == ""
	c.mu.Unlock()
	if already {
		return
	}
	c.log.Warn().Msg("session invalidated by backend")
	c.clearState()
}

// install writes the token (store first, then state) and then the user.
func (c *Controller) install(token string, user *gateway.User) {
	if err := c.store.Put(token); err != nil {
		c.log.Warn().Err(err).Msg("token store write failed")
	}
	c.mu.Lock()
	c.token = token
	c.user = user
	c.mu.Unlock()
	c.audit.SetUser(user.ID)
}

func (c *Controller) clearState() {
	c.mu.Lock()
	c.user = nil
	c.token = ""
	c.mu.Unlock()
	if err := c.store.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("token store clear failed")
	}
	c.audit.ClearUser()
}

// ValidatePassword enforces the registration policy: at least 6
// characters with an uppercase letter, a lowercase letter, and a digit.
func ValidatePassword(pw string) error {
	if len(pw) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("password must contain an uppercase letter, a lowercase letter, and a digit")
	}
	return nil
}

// errMessage prefers the backend's message over a generic fallback.
func errMessage(err error, fallback string) string {
	var te *transport.Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return fallback
}
