package rbac

// Role is an admin user role.
type Role string

const (
	RoleTenantAdmin Role = "tenant_admin"
	RoleTeacher     Role = "teacher"
	RoleSuperAdmin  Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTenantAdmin, RoleTeacher, RoleSuperAdmin:
		return true
	}
	return false
}

// RequiresTenant reports whether users with this role must belong to a tenant.
func (r Role) RequiresTenant() bool {
	return r != RoleSuperAdmin
}

func (r Role) String() string { return string(r) }
