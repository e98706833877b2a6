package chat

import "time"

// Exchange is one question/answer pair inside a session. Question and
// timestamp are immutable once created; the answer is written exactly once,
// either synchronously or after stream accumulation completes.
type Exchange struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"sessionId"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
