// Package auth holds the client-side authorization model: the role and
// permission catalog, the two pure predicates every screen consults, and
// the route guard. The backend remains the binding authority; these checks
// only drive UI affordances and navigation.
package auth

// Role is one of the three user classes.
type Role string

const (
	RoleSuperadmin   Role = "superadmin"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

// Valid reports whether r names a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleReceptionist, RolePatient:
		return true
	}
	return false
}

// Permission is a "<resource>:<verb>" key, or the sentinel PermAll.
type Permission string

const (
	PermAll Permission = "all"

	PermPatientsRead    Permission = "patients:read"
	PermPatientsWrite   Permission = "patients:write"
	PermPatientsApprove Permission = "patients:approve"

	PermAppointmentsRead    Permission = "appointments:read"
	PermAppointmentsWrite   Permission = "appointments:write"
	PermAppointmentsApprove Permission = "appointments:approve"
	PermAppointmentsCancel  Permission = "appointments:cancel"

	PermReportsRead     Permission = "reports:read"
	PermReportsWrite    Permission = "reports:write"
	PermReportsApprove  Permission = "reports:approve"
	PermReportsDownload Permission = "reports:download"

	PermPaymentsRead    Permission = "payments:read"
	PermPaymentsWrite   Permission = "payments:write"
	PermPaymentsApprove Permission = "payments:approve"

	PermComplaintsRead    Permission = "complaints:read"
	PermComplaintsWrite   Permission = "complaints:write"
	PermComplaintsApprove Permission = "complaints:approve"

	PermHomeCollectionRead    Permission = "home_collection:read"
	PermHomeCollectionWrite   Permission = "home_collection:write"
	PermHomeCollectionApprove Permission = "home_collection:approve"
	PermHomeCollectionRequest Permission = "home_collection:request"

	PermProfileRead  Permission = "profile:read"
	PermProfileWrite Permission = "profile:write"
)

// catalog is the authoritative role→permission map. It is consulted only
// through HasPermission.
var catalog = map[Role][]Permission{
	RoleSuperadmin: {PermAll},
	RoleReceptionist: {
		PermPatientsRead, PermPatientsWrite, PermPatientsApprove,
		PermAppointmentsRead, PermAppointmentsWrite, PermAppointmentsApprove,
		PermReportsRead, PermReportsWrite, PermReportsApprove,
		PermPaymentsRead, PermPaymentsWrite, PermPaymentsApprove,
		PermComplaintsRead, PermComplaintsWrite, PermComplaintsApprove,
		PermHomeCollectionRead, PermHomeCollectionWrite, PermHomeCollectionApprove,
	},
	RolePatient: {
		PermProfileRead, PermProfileWrite,
		PermAppointmentsRead, PermAppointmentsWrite, PermAppointmentsCancel,
		PermReportsRead, PermReportsDownload,
		PermPaymentsRead, PermPaymentsWrite,
		PermComplaintsWrite,
		PermHomeCollectionRequest,
	},
}

// HasRole reports whether role equals any of the required roles.
func HasRole(role Role, required ...Role) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// HasPermission reports whether the role's permission set contains key or
// the sentinel "all". Unknown roles hold no permissions.
func HasPermission(role Role, key Permission) bool {
	for _, p := range catalog[role] {
		if p == PermAll || p == key {
			return true
		}
	}
	return false
}

// Granted returns the catalog entry for a role. The returned slice must
// not be mutated.
func Granted(role Role) []Permission {
	return catalog[role]
}
