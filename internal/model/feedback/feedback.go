package feedback

import "time"

// Status tracks the review state of a feedback entry.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
)

// Feedback is a thumbs-up/down rating a user attached to one exchange.
// A user may rate each exchange at most once.
type Feedback struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_feedback_user_exchange" json:"userId"`
	ExchangeID string    `gorm:"size:36;not null;uniqueIndex:idx_feedback_user_exchange" json:"exchangeId"`
	IsPositive bool      `gorm:"not null" json:"isPositive"`
	Status     Status    `gorm:"size:16;not null;default:PENDING" json:"status"`
	CreatedAt  time.Time `gorm:"not null;index" json:"createdAt"`
}
