package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hwpark/chatbot/backend/internal/model/feedback"
)

// FeedbackStore is the gorm-backed Feedbacks implementation.
type FeedbackStore struct {
	db *gorm.DB
}

// NewFeedbackStore wraps the database handle.
func NewFeedbackStore(db *gorm.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// Save inserts the feedback, filling identity, status and timestamp when
// unset.
func (s *FeedbackStore) Save(ctx context.Context, fb *feedback.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.Status == "" {
		fb.Status = feedback.StatusPending
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(fb).Error
}

// FindByID returns one feedback entry.
func (s *FeedbackStore) FindByID(ctx context.Context, id string) (*feedback.Feedback, error) {
	var fb feedback.Feedback
	err := s.db.WithContext(ctx).First(&fb, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// ExistsByUserAndExchange reports whether the user already rated the
// exchange.
func (s *FeedbackStore) ExistsByUserAndExchange(ctx context.Context, userID, exchangeID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&feedback.Feedback{}).
		Where("user_id = ? AND exchange_id = ?", userID, exchangeID).
		Count(&count).Error
	return count > 0, err
}

// List pages through feedback entries matching the filter.
func (s *FeedbackStore) List(ctx context.Context, filter FeedbackFilter, page Page) ([]feedback.Feedback, int64, error) {
	query := s.db.WithContext(ctx).Model(&feedback.Feedback{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.IsPositive != nil {
		query = query.Where("is_positive = ?", *filter.IsPositive)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if page.Asc {
		order = "created_at ASC"
	}

	var entries []feedback.Feedback
	err := query.
		Order(order).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Update persists status changes on an existing entry.
func (s *FeedbackStore) Update(ctx context.Context, fb *feedback.Feedback) error {
	return s.db.WithContext(ctx).Save(fb).Error
}
