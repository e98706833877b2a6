package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
)

// SessionStore is the gorm-backed Sessions implementation.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wraps the database handle.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save inserts the session, filling identity and timestamps when unset.
func (s *SessionStore) Save(ctx context.Context, session *chat.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = session.CreatedAt
	}
	return s.db.WithContext(ctx).Create(session).Error
}

// FindLatestByUser returns the user's most recently active session.
func (s *SessionStore) FindLatestByUser(ctx context.Context, userID string) (*chat.Session, error) {
	var session chat.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByID returns one session without its exchanges.
func (s *SessionStore) FindByID(ctx context.Context, id string) (*chat.Session, error) {
	var session chat.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByUser pages through one user's sessions with exchanges preloaded.
func (s *SessionStore) ListByUser(ctx context.Context, userID string, page Page) ([]chat.Session, int64, error) {
	return s.list(ctx, page, s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// ListAll pages through every session, for administrators.
func (s *SessionStore) ListAll(ctx context.Context, page Page) ([]chat.Session, int64, error) {
	return s.list(ctx, page, s.db.WithContext(ctx))
}

func (s *SessionStore) list(ctx context.Context, page Page, query *gorm.DB) ([]chat.Session, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Model(&chat.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if page.Asc {
		order = "created_at ASC"
	}

	var sessions []chat.Session
	err := query.
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Order(order).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Delete removes the session; exchanges go with it via the cascade.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&chat.Session{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
