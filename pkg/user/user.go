package user

import "strings"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleDg     Role = "DG"
	RoleAgent  Role = "AGENT"
	RoleViewer Role = "VIEWER"
)

// User is the identity forwarded by the authentication proxy in front of the service.
type User struct {
	Id    string
	Email string
	Role  Role
}

func ParseRole(role string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(role))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleDg:
		return RoleDg
	case RoleAgent:
		return RoleAgent
	default:
		return RoleViewer
	}
}

// CanEdit reports whether the user may write planned and programmed lines.
func (u User) CanEdit() bool {
	return u.Role == RoleAdmin || u.Role == RoleAgent
}
