package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
)

// ExchangeStore is the gorm-backed Exchanges implementation.
type ExchangeStore struct {
	db *gorm.DB
}

// NewExchangeStore wraps the database handle.
func NewExchangeStore(db *gorm.DB) *ExchangeStore {
	return &ExchangeStore{db: db}
}

// Append stores the exchange and bumps the owning session's last-activity
// timestamp in one transaction. The guard clause keeps the timestamp
// monotonically non-decreasing under concurrent appends.
func (s *ExchangeStore) Append(ctx context.Context, exchange *chat.Exchange) error {
	if exchange.ID == "" {
		exchange.ID = uuid.NewString()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exchange).Error; err != nil {
			return err
		}
		return tx.Model(&chat.Session{}).
			Where("id = ? AND last_activity_at <= ?", exchange.SessionID, exchange.CreatedAt).
			Update("last_activity_at", exchange.CreatedAt).Error
	})
}

// FindByID returns one exchange.
func (s *ExchangeStore) FindByID(ctx context.Context, id string) (*chat.Exchange, error) {
	var exchange chat.Exchange
	err := s.db.WithContext(ctx).First(&exchange, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &exchange, nil
}

// FindBySession returns the session's exchanges oldest first.
func (s *ExchangeStore) FindBySession(ctx context.Context, sessionID string) ([]chat.Exchange, error) {
	var exchanges []chat.Exchange
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&exchanges).Error
	if err != nil {
		return nil, err
	}
	return exchanges, nil
}

// CountSince counts exchanges created at or after the given instant.
func (s *ExchangeStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&chat.Exchange{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// FindBetween returns exchanges in the window joined with their owning
// users, newest first, for report generation.
func (s *ExchangeStore) FindBetween(ctx context.Context, start, end time.Time) ([]ExchangeRecord, error) {
	var records []ExchangeRecord
	err := s.db.WithContext(ctx).
		Model(&chat.Exchange{}).
		Select("exchanges.*, users.id AS user_id, users.name AS user_name").
		Joins("JOIN sessions ON sessions.id = exchanges.session_id").
		Joins("JOIN users ON users.id = sessions.user_id").
		Where("exchanges.created_at BETWEEN ? AND ?", start, end).
		Order("exchanges.created_at DESC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
