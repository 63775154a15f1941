package auth

// Session is the slice of session-controller state the guard needs. The
// guard never touches the network; it decides from this and the catalog
// alone.
type Session interface {
	Loading() bool
	Authenticated() bool
	Role() Role
}

// Verdict is the guard's decision class.
type Verdict int

const (
	// VerdictLoading blocks the navigation decision until rehydration
	// completes.
	VerdictLoading Verdict = iota
	// VerdictLogin redirects an anonymous session to /login.
	VerdictLogin
	// VerdictDeniedRole renders the deny screen naming the required roles.
	VerdictDeniedRole
	// VerdictDeniedPermission renders the deny screen listing what is
	// missing.
	VerdictDeniedPermission
	// VerdictAllow admits the screen.
	VerdictAllow
)

// Decision carries the verdict plus everything the deny and login screens
// need to render.
type Decision struct {
	Verdict Verdict
	// ReturnTo preserves the originally requested path for the post-login
	// redirect.
	ReturnTo string
	// RequiredRoles and ActualRole are populated for VerdictDeniedRole.
	RequiredRoles []Role
	ActualRole    Role
	// Missing is populated for VerdictDeniedPermission.
	Missing []Permission
}

// Allowed is shorthand for Verdict == VerdictAllow.
func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

// Admit decides whether the session may enter the screen at path. Role
// requirements are checked before permission requirements; either list may
// be empty.
func Admit(s Session, path string, requiredRoles []Role, requiredPerms []Permission) Decision {
	if s.Loading() {
		return Decision{Verdict: VerdictLoading}
	}
	if !s.Authenticated() {
		return Decision{Verdict: VerdictLogin, ReturnTo: path}
	}

	role := s.Role()
	if len(requiredRoles) > 0 && !HasRole(role, requiredRoles...) {
		return Decision{
			Verdict:       VerdictDeniedRole,
			RequiredRoles: requiredRoles,
			ActualRole:    role,
		}
	}

	var missing []Permission
	for _, p := range requiredPerms {
		if !HasPermission(role, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Decision{
			Verdict:    VerdictDeniedPermission,
			ActualRole: role,
			Missing:    missing,
		}
	}

	return Decision{Verdict: VerdictAllow}
}
