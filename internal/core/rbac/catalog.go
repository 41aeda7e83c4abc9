// Package rbac holds the role catalog: a fixed table from role to permission set.
//
// Roles are defined by enumeration rather than inheritance. The intended containment
// ADMIN ⊇ MANAGER ⊇ MEMBER ⊇ OBSERVER is kept by hand and checked by tests, so any edit to
// one list must be mirrored in the lists above it.
package rbac

import "github.com/arklim/ticket-tracker/internal/core/domain"

var adminPermissions = []domain.Permission{
	domain.PermissionProjectView,
	domain.PermissionProjectEdit,
	domain.PermissionProjectDelete,
	domain.PermissionProjectManageMembers,
	domain.PermissionProjectManageRoles,
	domain.PermissionTicketCreate,
	domain.PermissionTicketEdit,
	domain.PermissionTicketDelete,
	domain.PermissionTicketAssign,
	domain.PermissionTicketChangeStatus,
	domain.PermissionCommentCreate,
	domain.PermissionCommentEdit,
	domain.PermissionCommentDelete,
	domain.PermissionLabelCreate,
	domain.PermissionLabelEdit,
	domain.PermissionLabelDelete,
	domain.PermissionChecklistCreate,
	domain.PermissionChecklistEdit,
	domain.PermissionChecklistDelete,
	domain.PermissionAttachmentUpload,
	domain.PermissionAttachmentDelete,
	domain.PermissionAuditView,
	domain.PermissionAuditExport,
	domain.PermissionAuditDelete,
	// carried over from MANAGER / MEMBER / OBSERVER
	domain.PermissionTicketView,
	domain.PermissionTicketEditAssigned,
	domain.PermissionTicketChangeStatusAssigned,
	domain.PermissionCommentView,
	domain.PermissionCommentEditOwn,
	domain.PermissionCommentDeleteOwn,
	domain.PermissionChecklistComplete,
}

var managerPermissions = []domain.Permission{
	domain.PermissionProjectView,
	domain.PermissionProjectEdit,
	domain.PermissionTicketCreate,
	domain.PermissionTicketEdit,
	domain.PermissionTicketAssign,
	domain.PermissionTicketChangeStatus,
	domain.PermissionCommentCreate,
	domain.PermissionCommentEdit,
	domain.PermissionCommentDelete,
	domain.PermissionLabelCreate,
	domain.PermissionLabelEdit,
	domain.PermissionChecklistCreate,
	domain.PermissionChecklistEdit,
	domain.PermissionAttachmentUpload,
	domain.PermissionAuditView,
	// carried over from MEMBER / OBSERVER
	domain.PermissionTicketView,
	domain.PermissionTicketEditAssigned,
	domain.PermissionTicketChangeStatusAssigned,
	domain.PermissionCommentView,
	domain.PermissionCommentEditOwn,
	domain.PermissionCommentDeleteOwn,
	domain.PermissionChecklistComplete,
}

var memberPermissions = []domain.Permission{
	domain.PermissionProjectView,
	domain.PermissionTicketEditAssigned,
	domain.PermissionTicketChangeStatusAssigned,
	domain.PermissionCommentCreate,
	domain.PermissionCommentEditOwn,
	domain.PermissionCommentDeleteOwn,
	domain.PermissionChecklistComplete,
	domain.PermissionAttachmentUpload,
	domain.PermissionAuditView,
	// carried over from OBSERVER
	domain.PermissionTicketView,
	domain.PermissionCommentView,
}

var observerPermissions = []domain.Permission{
	domain.PermissionProjectView,
	domain.PermissionTicketView,
	domain.PermissionCommentView,
	domain.PermissionAuditView,
}

// Catalog maps roles to permission sets. The zero value knows no roles and grants nothing.
type Catalog struct {
	roles map[domain.Role]domain.PermissionSet
}

// NewCatalog builds a catalog from the supplied table. The table is copied, so later
// changes by the caller do not leak into the catalog.
func NewCatalog(table map[domain.Role][]domain.Permission) Catalog {
	roles := make(map[domain.Role]domain.PermissionSet, len(table))
	for role, perms := range table {
		roles[role] = domain.NewPermissionSet(perms...)
	}
	return Catalog{roles: roles}
}

var defaultCatalog = NewCatalog(map[domain.Role][]domain.Permission{
	domain.RoleAdmin:    adminPermissions,
	domain.RoleManager:  managerPermissions,
	domain.RoleMember:   memberPermissions,
	domain.RoleObserver: observerPermissions,
})

// Default returns the process-wide catalog.
func Default() Catalog {
	return defaultCatalog
}

// PermissionsForRole returns the default catalog's set for role.
func PermissionsForRole(role domain.Role) domain.PermissionSet {
	return defaultCatalog.PermissionsFor(role)
}

// PermissionsFor returns a fresh copy of the role's permission set. Unknown roles yield an
// empty set.
func (c Catalog) PermissionsFor(role domain.Role) domain.PermissionSet {
	set, ok := c.roles[role]
	if !ok {
		return domain.PermissionSet{}
	}
	return set.Clone()
}

// Knows reports whether the catalog defines role.
func (c Catalog) Knows(role domain.Role) bool {
	_, ok := c.roles[role]
	return ok
}
