// Package rbac gates handlers by the role of the authenticated admin user.
//
// Roles are matched exactly: a route open to tenant administrators is not
// implicitly open to super-admins. Identity middleware stores the caller's
// role with SetRoleToContext; RequireRoles rejects callers without a role in
// context with ErrRoleNotInContext and callers with another role with a
// *DeniedError carrying both the required roles and the caller's role.
package rbac
