package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is an account able to own and view reports.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	SiteAdmin    bool      `db:"site_admin" json:"site_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RoleAssignment records that a user holds a role at some context level,
// optionally scoped to a single course.
type RoleAssignment struct {
	UserID       string       `db:"user_id" json:"user_id"`
	Role         string       `db:"role" json:"role"`
	ContextLevel ContextLevel `db:"context_level" json:"context_level"`
	CourseID     *string      `db:"course_id" json:"course_id,omitempty"`
}

// JWTClaims carried by access tokens.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse returns the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
