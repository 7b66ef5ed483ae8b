// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by repositories when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

// Role is the access level of a user account.
type Role string

const (
	// RoleOwner can manage team licenses in addition to everything a coach can do.
	RoleOwner Role = "Owner"
	// RoleCoach manages a squad roster.
	RoleCoach Role = "Coach"
)

// User represents an authenticated user in the system. Every user owns
// exactly one private roster, keyed by ID.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsOwner reports whether the user may use the admin console.
func (u *User) IsOwner() bool {
	return u != nil && u.Role == RoleOwner
}

// Session represents an active user session.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
// Lookups return ErrNotFound for unknown users and Create returns ErrConflict
// for a taken username.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, passwordHash string, role Role) (*User, error)
	Count(ctx context.Context) (int, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
