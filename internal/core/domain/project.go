package domain

// ProjectAccess is the slice of a project the authorization engine needs: who owns it and
// who is listed as an administrator. Both bypass membership lookup entirely.
type ProjectAccess struct {
	ProjectID string
	OwnerID   string
	AdminIDs  []string
}

// IsOwner reports whether userID owns the project.
func (p ProjectAccess) IsOwner(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// IsAdmin reports whether userID is in the project's admin list.
func (p ProjectAccess) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range p.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasOverride reports whether userID holds every permission in the project.
func (p ProjectAccess) HasOverride(userID string) bool {
	return p.IsOwner(userID) || p.IsAdmin(userID)
}
