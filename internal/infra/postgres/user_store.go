package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"quizmaster-service/internal/domain"
)

// UserStore is the bun-backed implementation of app.UserStore.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.NewInsert().Model(user).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.Validationf("email is already registered")
	}
	return err
}

func (s *UserStore) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (s *UserStore) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (s *UserStore) SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	var users []domain.User
	err := s.db.NewSelect().Model(&users).
		Where("u.full_name ILIKE ? OR u.email ILIKE ?", "%"+query+"%", "%"+query+"%").
		Limit(limit).Scan(ctx)
	return users, err
}
