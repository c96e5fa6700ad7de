package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of privileges a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts raw input to a Role. An empty string means RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: role must be one of: user admin", ErrValidation)
	}
	return r, nil
}

// RoleAllowed reports whether role satisfies allowed. An empty allowed set
// admits any valid role.
func RoleAllowed(role Role, allowed []Role) bool {
	if !role.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

// User models an account in the credential store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the view of a user that may leave the service.
type PublicUser struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// Public strips credential material from u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// TokenClaims is the identity carried by a verified bearer token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      Role
	ExpiresAt time.Time
}
