package models

import (
	"time"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// Tier is the account service level that gates numeric limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// User represents an account that owns projects and metered resources.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(username, email string, role Role) *User {
	now := time.Now()
	return &User{
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ParseRole converts a string to Role.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	default:
		return RoleEditor
	}
}

// ParseTier converts a string to Tier. Anything unrecognised is free.
func ParseTier(s string) Tier {
	if s == string(TierPremium) {
		return TierPremium
	}
	return TierFree
}

// IsPremium reports whether the tier bypasses numeric limits.
func (t Tier) IsPremium() bool {
	return t == TierPremium
}
