package auth

import (
	"github.com/mcpgateway/gateway/internal/catalog"
)

// RequireTeamRole reports whether identity holds at least role within
// teamID, consulting the caller-supplied membership lookup. Platform admins
// always satisfy any role requirement.
func RequireTeamRole(identity Identity, teamID string, role Role, members []TeamMember) bool {
	if identity.IsPlatformAdmin() {
		return true
	}
	for _, m := range members {
		if m.TeamID != teamID || m.UserEmail != identity.UserEmail {
			continue
		}
		if role == RoleMember {
			return true // owner or member both satisfy a member requirement
		}
		return m.Role == RoleOwner
	}
	return false
}

// CanRead reports whether identity may read entity, delegating to the
// catalog visibility predicate (spec §4.7).
func CanRead(identity Identity, entity catalog.Entity) bool {
	return catalog.Allowed(identity, entity)
}

// CanWrite reports whether identity may mutate entity. Team-visible and
// private entities require ownership or platform-admin; public entities
// still require ownership to mutate (visibility controls read exposure,
// not write authority).
func CanWrite(identity Identity, entity catalog.Entity, isTeamOwner bool) bool {
	return catalog.CanMutate(identity, entity, isTeamOwner)
}
