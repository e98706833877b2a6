package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hwpark/chatbot/backend/internal/auth"
	feedbackmodel "github.com/hwpark/chatbot/backend/internal/model/feedback"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// ErrDuplicate is returned when a user rates the same exchange twice.
var ErrDuplicate = errors.New("feedback: already submitted for this exchange")

// Service handles exchange ratings.
type Service struct {
	feedbacks store.Feedbacks
	exchanges store.Exchanges
	sessions  store.Sessions
	logger    *slog.Logger
}

// NewService wires the stores feedback depends on.
func NewService(feedbacks store.Feedbacks, exchanges store.Exchanges, sessions store.Sessions, logger *slog.Logger) *Service {
	return &Service{feedbacks: feedbacks, exchanges: exchanges, sessions: sessions, logger: logger}
}

// Create rates one exchange. Members may only rate exchanges they own;
// admins may rate any. One rating per user per exchange.
func (s *Service) Create(ctx context.Context, usr *usermodel.User, exchangeID string, isPositive bool) (*feedbackmodel.Feedback, error) {
	exchange, err := s.exchanges.FindByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, exchange.SessionID)
	if err != nil {
		return nil, fmt.Errorf("feedback: load owning session: %w", err)
	}
	if err := auth.CheckOwnerOrAdmin(usr, session.UserID); err != nil {
		return nil, err
	}

	exists, err := s.feedbacks.ExistsByUserAndExchange(ctx, usr.ID, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("feedback: check duplicate: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	fb := &feedbackmodel.Feedback{
		UserID:     usr.ID,
		ExchangeID: exchangeID,
		IsPositive: isPositive,
	}
	if err := s.feedbacks.Save(ctx, fb); err != nil {
		return nil, fmt.Errorf("feedback: save: %w", err)
	}
	return fb, nil
}

// List pages through feedback: members see their own, admins see all and
// may filter by polarity.
func (s *Service) List(ctx context.Context, usr *usermodel.User, isPositive *bool, page store.Page) ([]feedbackmodel.Feedback, int64, error) {
	filter := store.FeedbackFilter{IsPositive: isPositive}
	if !usr.IsAdmin() {
		filter.UserID = usr.ID
	}
	return s.feedbacks.List(ctx, filter, page)
}

// UpdateStatus moves a feedback entry through its review workflow. Route
// protection restricts this to admins.
func (s *Service) UpdateStatus(ctx context.Context, id string, status feedbackmodel.Status) (*feedbackmodel.Feedback, error) {
	fb, err := s.feedbacks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fb.Status = status
	if err := s.feedbacks.Update(ctx, fb); err != nil {
		return nil, fmt.Errorf("feedback: update status: %w", err)
	}
	s.logger.Info("feedback status updated", "feedback", id, "status", status)
	return fb, nil
}
