package store

import (
	"context"
	"errors"
	"time"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
	"github.com/hwpark/chatbot/backend/internal/model/feedback"
	"github.com/hwpark/chatbot/backend/internal/model/user"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Page describes offset pagination for list queries.
type Page struct {
	Number int  // zero-based
	Size   int
	Asc    bool // sort by creation time ascending instead of descending
}

// Offset returns the row offset for this page.
func (p Page) Offset() int {
	if p.Number < 0 {
		return 0
	}
	return p.Number * p.Size
}

// Sessions persists conversation sessions.
type Sessions interface {
	Save(ctx context.Context, session *chat.Session) error
	// FindLatestByUser returns the user's most recently active session,
	// or ErrNotFound when the user has none.
	FindLatestByUser(ctx context.Context, userID string) (*chat.Session, error)
	FindByID(ctx context.Context, id string) (*chat.Session, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]chat.Session, int64, error)
	ListAll(ctx context.Context, page Page) ([]chat.Session, int64, error)
	// Delete removes the session and, by cascade, its exchanges.
	Delete(ctx context.Context, id string) error
}

// ExchangeRecord pairs an exchange with its owning user, for reporting.
type ExchangeRecord struct {
	chat.Exchange
	UserID   string
	UserName string
}

// Exchanges persists question/answer pairs.
type Exchanges interface {
	// Append stores the exchange and advances the owning session's
	// last-activity timestamp in the same transaction. The timestamp never
	// moves backwards.
	Append(ctx context.Context, exchange *chat.Exchange) error
	FindByID(ctx context.Context, id string) (*chat.Exchange, error)
	// FindBySession returns the session's exchanges in chronological order.
	FindBySession(ctx context.Context, sessionID string) ([]chat.Exchange, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	FindBetween(ctx context.Context, start, end time.Time) ([]ExchangeRecord, error)
}

// Users persists accounts.
type Users interface {
	Save(ctx context.Context, u *user.User) error
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id string) (*user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountBetween(ctx context.Context, start, end time.Time) (int64, error)
}

// FeedbackFilter narrows feedback listings.
type FeedbackFilter struct {
	UserID     string // empty means all users
	IsPositive *bool  // nil means both polarities
}

// Feedbacks persists exchange ratings.
type Feedbacks interface {
	Save(ctx context.Context, fb *feedback.Feedback) error
	FindByID(ctx context.Context, id string) (*feedback.Feedback, error)
	ExistsByUserAndExchange(ctx context.Context, userID, exchangeID string) (bool, error)
	List(ctx context.Context, filter FeedbackFilter, page Page) ([]feedback.Feedback, int64, error)
	Update(ctx context.Context, fb *feedback.Feedback) error
}
