package auth

import "testing"

func TestHasRole(t *testing.T) {
	if !HasRole(RolePatient, RolePatient) {
		t.Error("exact match should pass")
	}
	if !HasRole(RoleReceptionist, RoleSuperadmin, RoleReceptionist) {
		t.Error("set membership should pass")
	}
	if HasRole(RolePatient, RoleSuperadmin, RoleReceptionist) {
		t.Error("patient is not staff")
	}
	if HasRole(RolePatient) {
		t.Error("empty requirement never matches")
	}
}

func TestSuperadminHasEverything(t *testing.T) {
	for _, p := range []Permission{
		PermPatientsRead, PermAppointmentsApprove, PermReportsDownload,
		PermPaymentsWrite, PermComplaintsApprove, PermHomeCollectionRequest,
		PermProfileWrite,
	} {
		if !HasPermission(RoleSuperadmin, p) {
			t.Errorf("superadmin missing %s", p)
		}
	}
}

func TestReceptionistCatalog(t *testing.T) {
	granted := []Permission{
		PermPatientsRead, PermPatientsWrite, PermPatientsApprove,
		PermAppointmentsRead, PermAppointmentsWrite, PermAppointmentsApprove,
		PermReportsRead, PermReportsWrite, PermReportsApprove,
		PermPaymentsRead, PermPaymentsWrite, PermPaymentsApprove,
		PermComplaintsRead, PermComplaintsWrite, PermComplaintsApprove,
		PermHomeCollectionRead, PermHomeCollectionWrite, PermHomeCollectionApprove,
	}
	for _, p := range granted {
		if !HasPermission(RoleReceptionist, p) {
			t.Errorf("receptionist missing %s", p)
		}
	}
	denied := []Permission{
		PermReportsDownload, PermAppointmentsCancel,
		PermHomeCollectionRequest, PermProfileRead, PermProfileWrite,
	}
	for _, p := range denied {
		if HasPermission(RoleReceptionist, p) {
			t.Errorf("receptionist should not have %s", p)
		}
	}
}

func TestPatientCatalog(t *testing.T) {
	granted := []Permission{
		PermProfileRead, PermProfileWrite,
		PermAppointmentsRead, PermAppointmentsWrite, PermAppointmentsCancel,
		PermReportsRead, PermReportsDownload,
		PermPaymentsRead, PermPaymentsWrite,
		PermComplaintsWrite,
		PermHomeCollectionRequest,
	}
	for _, p := range granted {
		if !HasPermission(RolePatient, p) {
			t.Errorf("patient missing %s", p)
		}
	}
	denied := []Permission{
		PermPatientsRead, PermPatientsWrite,
		PermAppointmentsApprove, PermReportsWrite, PermReportsApprove,
		PermPaymentsApprove, PermComplaintsRead, PermComplaintsApprove,
		PermHomeCollectionApprove,
	}
	for _, p := range denied {
		if HasPermission(RolePatient, p) {
			t.Errorf("patient should not have %s", p)
		}
	}
}

func TestUnknownRoleHasNothing(t *testing.T) {
	if HasPermission(Role("labtech"), PermPatientsRead) {
		t.Error("unknown role must be denied")
	}
	if HasPermission(Role(""), PermAll) {
		t.Error("empty role must be denied")
	}
}

// Permission evaluation is pure: repeated evaluations of the same pair
// always yield the same verdict.
func TestPermissionPurity(t *testing.T) {
	pairs := []struct {
		role Role
		key  Permission
	}{
		{RolePatient, PermReportsDownload},
		{RolePatient, PermPatientsRead},
		{RoleReceptionist, PermAppointmentsApprove},
		{RoleSuperadmin, PermComplaintsApprove},
	}
	for _, pair := range pairs {
		first := HasPermission(pair.role, pair.key)
		for i := 0; i < 100; i++ {
			if HasPermission(pair.role, pair.key) != first {
				t.Fatalf("verdict for (%s, %s) changed between evaluations", pair.role, pair.key)
			}
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSuperadmin, RoleReceptionist, RolePatient} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("admin").Valid() {
		t.Error("admin is not a SmartLab role")
	}
}
