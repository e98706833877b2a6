package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hwpark/chatbot/backend/internal/model/user"
)

// UserStore is the gorm-backed Users implementation.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps the database handle.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Save inserts the user, filling identity and timestamp when unset.
func (s *UserStore) Save(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(u).Error
}

// FindByEmail returns the account registered under email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByID returns one account.
func (s *UserStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ExistsByEmail reports whether an account already uses email.
func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&user.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

// CountBetween counts signups inside the window, for statistics.
func (s *UserStore) CountBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&user.User{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Count(&count).Error
	return count, err
}
