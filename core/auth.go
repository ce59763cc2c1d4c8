package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role is a closed enumeration used for coarse-grained access control.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a role name against the closed role set.
// Unknown names are rejected rather than passed through.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// ParseRoles validates a list of role names. The whole list is rejected
// if any entry is unknown.
func ParseRoles(names []string) ([]Role, error) {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// RoleNames converts roles back to their wire representation.
func RoleNames(roles []Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

// HasRole reports whether roles contains want.
func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong.
	// Unknown user and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateUsername is returned when registering an existing username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned when registering an existing email.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrTokenMalformed indicates a token whose structure cannot be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrInvalidSignature indicates a token whose MAC does not verify.
	ErrInvalidSignature = errors.New("token signature invalid")

	// ErrUnauthenticated is returned when a rule requires an identity and none exists.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when an identity lacks the required roles.
	ErrForbidden = errors.New("insufficient role")
)

// RegisterRequest carries the registration payload.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthService defines authentication behaviour.
type AuthService interface {
	// Login verifies credentials and issues a signed token on success.
	Login(ctx context.Context, username, password string) (string, error)
	// Register creates a new principal and issues a token for it.
	Register(ctx context.Context, req RegisterRequest) (string, error)
}

// Claims is the decoded payload of a token.
type Claims struct {
	Subject   string
	Roles     []Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
