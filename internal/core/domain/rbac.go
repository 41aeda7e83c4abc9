package domain

import (
	"sort"
	"strings"
)

// Role is a project-scoped role token. Roles are not persisted entities; they only select a
// permission set from the catalog at assignment time.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleMember   Role = "MEMBER"
	RoleObserver Role = "OBSERVER"
)

// Roles lists every known role from most to least privileged.
var Roles = []Role{RoleAdmin, RoleManager, RoleMember, RoleObserver}

// ParseRole normalises a role token. The second return value is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Roles {
		if role == known {
			return role, true
		}
	}
	return "", false
}

// Permission is an opaque `<resource>.<verb>` token.
type Permission string

const (
	PermissionProjectView          Permission = "project.view"
	PermissionProjectEdit          Permission = "project.edit"
	PermissionProjectDelete        Permission = "project.delete"
	PermissionProjectManageMembers Permission = "project.manage_members"
	PermissionProjectManageRoles   Permission = "project.manage_roles"

	PermissionTicketView                 Permission = "ticket.view"
	PermissionTicketCreate               Permission = "ticket.create"
	PermissionTicketEdit                 Permission = "ticket.edit"
	PermissionTicketEditAssigned         Permission = "ticket.edit_assigned"
	PermissionTicketDelete               Permission = "ticket.delete"
	PermissionTicketAssign               Permission = "ticket.assign"
	PermissionTicketChangeStatus         Permission = "ticket.change_status"
	PermissionTicketChangeStatusAssigned Permission = "ticket.change_status_assigned"

	PermissionCommentView      Permission = "comment.view"
	PermissionCommentCreate    Permission = "comment.create"
	PermissionCommentEdit      Permission = "comment.edit"
	PermissionCommentEditOwn   Permission = "comment.edit_own"
	PermissionCommentDelete    Permission = "comment.delete"
	PermissionCommentDeleteOwn Permission = "comment.delete_own"

	PermissionLabelCreate Permission = "label.create"
	PermissionLabelEdit   Permission = "label.edit"
	PermissionLabelDelete Permission = "label.delete"

	PermissionChecklistCreate   Permission = "checklist.create"
	PermissionChecklistEdit     Permission = "checklist.edit"
	PermissionChecklistDelete   Permission = "checklist.delete"
	PermissionChecklistComplete Permission = "checklist.complete"

	PermissionAttachmentUpload Permission = "attachment.upload"
	PermissionAttachmentDelete Permission = "attachment.delete"

	PermissionAuditView   Permission = "audit.view"
	PermissionAuditExport Permission = "audit.export"
	PermissionAuditDelete Permission = "audit.delete"
)

// PermissionSet is an immutable-by-convention set of permission tokens.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the supplied tokens, dropping blanks.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// PermissionSetFromStrings converts stored string tokens into a set.
func PermissionSetFromStrings(values []string) PermissionSet {
	set := make(PermissionSet, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[Permission(v)] = struct{}{}
	}
	return set
}

// Contains reports whether p is in the set. A nil set contains nothing.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// ContainsAll reports whether every token of other is also in s.
func (s PermissionSet) ContainsAll(other PermissionSet) bool {
	for p := range other {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold exactly the same tokens.
func (s PermissionSet) Equal(other PermissionSet) bool {
	return len(s) == len(other) && s.ContainsAll(other)
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Strings returns the tokens sorted lexically, suitable for storage and JSON.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}
