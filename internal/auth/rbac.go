package auth

import "strings"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProvider     Role = "provider"
	RoleCollaborator Role = "collaborator"
	RoleUser         Role = "user"
)

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleProvider):
		return RoleProvider
	case string(RoleCollaborator):
		return RoleCollaborator
	case string(RoleUser):
		return RoleUser
	default:
		return RoleUser
	}
}

func HasRole(role string, allowed ...Role) bool {
	if len(allowed) == 0 {
		return false
	}
	current := NormalizeRole(role)
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}
