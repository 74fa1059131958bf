package users

import (
	"errors"
	"time"
)

// User is an account that can sign in to the back office.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateInput describes a new account.
type CreateInput struct {
	Email    string
	FullName string
	Phone    string
	Password string
	Roles    []string
	ActorID  int64
}

// UpdateInput changes account fields. Nil fields are left as they are.
type UpdateInput struct {
	FullName *string
	Phone    *string
	Password *string
	IsActive *bool
	ActorID  int64
}

// ListFilter filters account listings.
type ListFilter struct {
	Search   string
	IsActive *bool
	Page     int
	PerPage  int
}

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("users: user not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrWeakPassword indicates the password is shorter than 8 characters.
	ErrWeakPassword = errors.New("users: password must be at least 8 characters")
)
