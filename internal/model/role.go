package model

// Role identifies a user's function on a construction project.
type Role string

// Roles.
const (
	RoleSystemAdmin        Role = "system_admin"
	RoleFinanceDirector    Role = "finance_director"
	RoleAssetDirector      Role = "asset_director"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleProjectManager     Role = "project_manager"
	RoleWarehouseman       Role = "warehouseman"
	RoleSiteClerk          Role = "site_clerk"
)

// AllRoles lists every known role, used for input validation.
var AllRoles = []Role{
	RoleSystemAdmin,
	RoleFinanceDirector,
	RoleAssetDirector,
	RoleProcurementOfficer,
	RoleProjectManager,
	RoleWarehouseman,
	RoleSiteClerk,
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Action is a named operation on a borrowing batch, checked against the
// permission table. Unknown actions fail closed.
type Action string

// Actions.
const (
	ActionCreate           Action = "create"
	ActionCreateAnyProject Action = "create_any_project"
	ActionUpdate           Action = "update"
	ActionSubmit           Action = "submit"
	ActionVerify           Action = "verify"
	ActionApprove          Action = "approve"
	ActionBorrow           Action = "borrow"
	ActionReturn           Action = "return"
	ActionExtend           Action = "extend"
	ActionCancel           Action = "cancel"
	ActionView             Action = "view"
	ActionViewAllProjects  Action = "view_all_projects"
)
