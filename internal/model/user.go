package model

import (
	"github.com/google/uuid"
)

// User is a recipient or actor. Read-only from this service.
type User struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Name  string    `json:"name" db:"name"`
	Email string    `json:"email" db:"email"`
	Role  string    `json:"role,omitempty" db:"role"`
}

// DisplayName falls back to a generic greeting when the directory has no name.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "User"
	}
	return u.Name
}
