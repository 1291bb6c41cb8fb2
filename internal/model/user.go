package model

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates portal user roles.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleFaculty    Role = "FACULTY"
	RoleStudent    Role = "STUDENT"
)

// User is the read-only projection of a portal user the core needs:
// display names for certificates and role checks. Account management
// belongs to the identity collaborator.
type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins first and last name, trimming a missing last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
