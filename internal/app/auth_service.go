package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quizmaster-service/internal/domain"
)

// UserStore persists accounts. Email uniqueness is enforced at the store.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	SearchUsers(ctx context.Context, q string, limit int) ([]domain.User, error)
}

// AuthService handles registration and credential checks. Token minting
// lives at the transport edge.
type AuthService struct {
	users UserStore
}

func NewAuthService(users UserStore) *AuthService {
	return &AuthService{users: users}
}

type RegisterInput struct {
	Email         string
	Password      string
	FullName      string
	Qualification string
	DOB           *time.Time
	Role          string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if _, err := s.users.UserByEmail(ctx, in.Email); err == nil {
		return nil, domain.Validationf("email is already registered")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := &domain.User{
		Email:         in.Email,
		PasswordHash:  string(hash),
		FullName:      in.FullName,
		Qualification: in.Qualification,
		DOB:           in.DOB,
		Role:          role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// SearchUsers is the admin console's user lookup.
func (s *AuthService) SearchUsers(ctx context.Context, q string, limit int) ([]domain.User, error) {
	if q == "" {
		return []domain.User{}, nil
	}
	return s.users.SearchUsers(ctx, q, limit)
}
