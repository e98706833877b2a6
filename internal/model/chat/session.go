package chat

import "time"

// Session groups consecutive exchanges of one user into a bounded
// conversation. A session is never closed explicitly; once its idle window
// elapses it simply stops being reused and a fresh one is created on the
// next question.
type Session struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"size:36;not null;index:idx_sessions_user_activity" json:"userId"`
	CreatedAt      time.Time  `gorm:"not null" json:"createdAt"`
	LastActivityAt time.Time  `gorm:"not null;index:idx_sessions_user_activity" json:"lastActivityAt"`
	Exchanges      []Exchange `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"exchanges,omitempty"`
}
