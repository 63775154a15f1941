package auth

import "testing"

type fakeSession struct {
	loading bool
	role    Role
}

func (f fakeSession) Loading() bool       { return f.loading }
func (f fakeSession) Authenticated() bool { return f.role != "" }
func (f fakeSession) Role() Role          { return f.role }

func TestAdmitLoading(t *testing.T) {
	d := Admit(fakeSession{loading: true}, "/patients", nil, nil)
	if d.Verdict != VerdictLoading {
		t.Fatalf("verdict = %v; want loading", d.Verdict)
	}
}

func TestAdmitAnonymousRedirects(t *testing.T) {
	d := Admit(fakeSession{}, "/patients", nil, []Permission{PermPatientsRead})
	if d.Verdict != VerdictLogin {
		t.Fatalf("verdict = %v; want login redirect", d.Verdict)
	}
	if d.ReturnTo != "/patients" {
		t.Fatalf("ReturnTo = %q; want original path preserved", d.ReturnTo)
	}
}

func TestAdmitRoleDenied(t *testing.T) {
	d := Admit(fakeSession{role: RolePatient}, "/admin",
		[]Role{RoleSuperadmin, RoleReceptionist}, nil)
	if d.Verdict != VerdictDeniedRole {
		t.Fatalf("verdict = %v; want role denial", d.Verdict)
	}
	if d.ActualRole != RolePatient || len(d.RequiredRoles) != 2 {
		t.Fatalf("deny detail = %+v", d)
	}
}

func TestAdmitPermissionDenied(t *testing.T) {
	// A patient lacking patients:read re-navigating to /patients after
	// login sees the deny screen naming the missing permission.
	d := Admit(fakeSession{role: RolePatient}, "/patients",
		nil, []Permission{PermPatientsRead})
	if d.Verdict != VerdictDeniedPermission {
		t.Fatalf("verdict = %v; want permission denial", d.Verdict)
	}
	if len(d.Missing) != 1 || d.Missing[0] != PermPatientsRead {
		t.Fatalf("Missing = %v; want [patients:read]", d.Missing)
	}
	if d.ActualRole != RolePatient {
		t.Fatalf("ActualRole = %q", d.ActualRole)
	}
}

func TestAdmitListsAllMissingPermissions(t *testing.T) {
	d := Admit(fakeSession{role: RolePatient}, "/reports/review",
		nil, []Permission{PermReportsRead, PermReportsApprove, PermReportsWrite})
	if d.Verdict != VerdictDeniedPermission {
		t.Fatalf("verdict = %v", d.Verdict)
	}
	if len(d.Missing) != 2 {
		t.Fatalf("Missing = %v; want the two the patient lacks", d.Missing)
	}
}

func TestAdmitRoleCheckedBeforePermissions(t *testing.T) {
	d := Admit(fakeSession{role: RolePatient}, "/x",
		[]Role{RoleReceptionist}, []Permission{PermPatientsRead})
	if d.Verdict != VerdictDeniedRole {
		t.Fatalf("verdict = %v; role denial should win", d.Verdict)
	}
}

func TestAdmitAllow(t *testing.T) {
	cases := []struct {
		name  string
		sess  fakeSession
		roles []Role
		perms []Permission
	}{
		{"no requirements", fakeSession{role: RolePatient}, nil, nil},
		{"role match", fakeSession{role: RoleReceptionist}, []Role{RoleReceptionist}, nil},
		{"permission match", fakeSession{role: RolePatient}, nil, []Permission{PermReportsDownload}},
		{"superadmin passes any permission", fakeSession{role: RoleSuperadmin}, nil,
			[]Permission{PermPatientsRead, PermComplaintsApprove}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Admit(tc.sess, "/x", tc.roles, tc.perms)
			if !d.Allowed() {
				t.Fatalf("verdict = %v; want allow", d.Verdict)
			}
		})
	}
}
