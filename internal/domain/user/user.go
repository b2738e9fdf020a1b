package user

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser = "USER"
	// RoleAdmiral is the only role allowed to credit other users.
	RoleAdmiral = "ADMIRAL"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Points       int       `json:"points"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) IsAdmiral() bool {
	return u.Role == RoleAdmiral
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email,min=3"`
	Username string `json:"username" binding:"required,min=3,max=64"`
	Phone    string `json:"phone" binding:"required,min=10,max=20"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateParams struct {
	Email        string
	Username     string
	Phone        string
	PasswordHash string
	Role         string
	Points       int
}

// NormalizeEmail is applied on every write and lookup so the unique index
// behaves case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
