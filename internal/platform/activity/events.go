package activity

// Typed emit helpers, one per event kind, so call sites cannot misspell
// the required detail keys.

func (l *Logger) UserLogin(email string, success bool, errMsg string) {
	d := map[string]any{"email": email, "success": success, "ip": placeholderIP}
	if errMsg != "" {
		d["error"] = errMsg
	}
	l.Emit(KindUserLogin, d)
}

func (l *Logger) UserLogout(email string) {
	l.Emit(KindUserLogout, map[string]any{"email": email, "ip": placeholderIP})
}

func (l *Logger) UserRegistration(email, role string, success bool, errMsg string) {
	d := map[string]any{"email": email, "role": role, "success": success, "ip": placeholderIP}
	if errMsg != "" {
		d["error"] = errMsg
	}
	l.Emit(KindUserRegistration, d)
}

func (l *Logger) PasswordChange(email string, success bool, errMsg string) {
	d := map[string]any{"email": email, "success": success, "ip": placeholderIP}
	if errMsg != "" {
		d["error"] = errMsg
	}
	l.Emit(KindPasswordChange, d)
}

// Resource emits one of the CRUD kinds. payload is the mutation body; only
// its key names are shipped.
func (l *Logger) Resource(kind Kind, resource, resourceID string, payload map[string]any) {
	l.Emit(kind, map[string]any{
		"resource":    resource,
		"resourceId":  resourceID,
		"changesKeys": PayloadKeys(payload),
	})
}

func (l *Logger) Navigation(from, to string) {
	l.Emit(KindNavigation, map[string]any{"from": from, "to": to})
}

func (l *Logger) Search(resource, query string, resultsCount int) {
	l.Emit(KindSearch, map[string]any{
		"resource":     resource,
		"query":        query,
		"resultsCount": resultsCount,
	})
}

func (l *Logger) AppError(message, stack, context string) {
	l.Emit(KindError, map[string]any{
		"error":   message,
		"stack":   stack,
		"context": context,
	})
}

func (l *Logger) Security(event string, details map[string]any) {
	d := map[string]any{"event": event}
	for k, v := range details {
		d[k] = v
	}
	l.Emit(KindSecurityEvent, d)
}
