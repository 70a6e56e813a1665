package devapi

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryAuthService checks credentials against the user repository.
type RepositoryAuthService struct {
	users UserRepository
	cost  int
}

func NewRepositoryAuthService(users UserRepository) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, cost: bcrypt.DefaultCost}
}

func (s *RepositoryAuthService) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil || u == nil {
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u.User(), nil
}

// Register creates an account. The email must not be in use.
func (s *RepositoryAuthService) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	rec, err := s.users.Create(ctx, UserRecord{
		Name:         strings.TrimSpace(in.Name),
		Lastname:     strings.TrimSpace(in.Lastname),
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	return rec.User(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
