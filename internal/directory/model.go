package directory

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
	RoleAdmin   Role = "ADMIN"
)

var ErrAccountNotFound = errors.New("account not found")

// ParseRole accepts a role token case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleDoctor, RolePatient, RoleAdmin:
		return r, true
	}
	return "", false
}

// Account is the scheduler's read-only view of a user owned by the user directory.
type Account struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"is_active"`
}
