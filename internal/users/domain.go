package users

import "time"

// User represents an application account. A user holds exactly one
// role at a time through user_role_assignments.
type User struct {
	ID           string
	Username     string
	Email        string
	Nome         string
	Telefone     string
	PasswordHash string
	Ativo        bool
	TwoFAEnabled bool
	RoleID       int64
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}
