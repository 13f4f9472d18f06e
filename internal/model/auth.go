package model

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is the authenticated account as served by the platform API.
type User struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LoginRequest is the credentials payload for POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RegisterRequest is the payload for POST /register.
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,min=2,max=255"`
	Username             string `json:"username" binding:"required,min=3,max=64"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required,min=6"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	Role                 Role   `json:"role" binding:"required,oneof=student admin"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User    User   `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}
