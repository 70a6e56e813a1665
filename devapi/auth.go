package devapi

import (
	"context"
	"errors"
	"time"
)

// User is an authenticated operator returned to handlers.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Lastname  string    `json:"lastname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"-"`
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Name     string
	Lastname string
	Email    string
	Password string
}

var (
	// ErrInvalidCredentials is returned when email/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound is returned by repositories for unknown ids.
	ErrNotFound = errors.New("not found")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (User, error)
	Register(ctx context.Context, in RegisterInput) (User, error)
}
