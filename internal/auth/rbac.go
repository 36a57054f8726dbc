package auth

import "strings"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}

// CanManage reports whether the caller may manage a resource owned by
// ownerID: admins manage everything, owners manage their own.
func CanManage(identity *Identity, ownerID string) bool {
	if identity == nil {
		return false
	}
	if IsAdmin(identity.Role) {
		return true
	}
	return ownerID != "" && identity.UserID == ownerID
}
