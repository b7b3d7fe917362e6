package models

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient    Role = "client"
	RoleProvider  Role = "provider"
	RoleInspector Role = "inspector"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleClient, RoleProvider, RoleInspector, RoleAdmin:
		return r, true
	}
	return "", false
}

// IsServiceActor reports whether the role can be assigned to a job.
func (r Role) IsServiceActor() bool {
	return r == RoleProvider || r == RoleInspector
}

// Principal is the authenticated caller attached to every request.
// Users themselves live in the identity service.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
