package authcore

// Permission strings embedded in access tokens. Authorization
// decisions downstream match on these exact values.
const (
	PermEmergencyRequest    = "emergency:request"
	PermSubscriptionManage  = "subscription:purchase"
	PermGroupManage         = "group:manage"
	PermRequestView         = "request:view"
	PermRequestAccept       = "request:accept"
	PermRequestAssign       = "request:assign"
	PermRequestResolve      = "request:resolve"
	PermFirmPersonnelManage = "firm:personnel:manage"
	PermFirmReports         = "firm:reports"
)

var registeredUserPerms = []string{
	PermEmergencyRequest,
	PermSubscriptionManage,
	PermGroupManage,
}

var firmBasePerms = []string{
	PermRequestView,
	PermRequestAccept,
}

var firmRolePerms = map[string][]string{
	RoleFirmAdmin:   {PermRequestAssign, PermRequestResolve, PermFirmPersonnelManage, PermFirmReports},
	RoleTeamLeader:  {PermRequestAssign, PermRequestResolve},
	RoleFieldAgent:  {PermRequestResolve},
	RoleOfficeStaff: {PermFirmReports},
}

// PermissionsFor derives the permission set embedded in a principal's
// access tokens. The mapping is static: permissions follow from kind
// and role alone, so a refresh recomputes them and role changes take
// effect at the next rotation. Unknown kinds and roles get nothing.
func PermissionsFor(kind Kind, role string) []string {
	switch kind {
	case KindRegisteredUser:
		out := make([]string, len(registeredUserPerms))
		copy(out, registeredUserPerms)
		return out
	case KindFirmPersonnel:
		out := make([]string, len(firmBasePerms), len(firmBasePerms)+4)
		copy(out, firmBasePerms)
		out = append(out, firmRolePerms[role]...)
		return out
	default:
		return nil
	}
}
