package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hwpark/chatbot/backend/internal/auth"
	chatmodel "github.com/hwpark/chatbot/backend/internal/model/chat"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// Threads serves session listing and deletion on top of the session store.
type Threads struct {
	sessions store.Sessions
	logger   *slog.Logger
}

// NewThreads wraps the session store.
func NewThreads(sessions store.Sessions, logger *slog.Logger) *Threads {
	return &Threads{sessions: sessions, logger: logger}
}

// List pages through the user's sessions, or every session for admins.
func (t *Threads) List(ctx context.Context, usr *usermodel.User, page store.Page) ([]chatmodel.Session, int64, error) {
	if usr.IsAdmin() {
		return t.sessions.ListAll(ctx, page)
	}
	return t.sessions.ListByUser(ctx, usr.ID, page)
}

// Delete removes a session and its exchanges. Only the owner or an admin
// may delete; everyone else gets auth.ErrForbidden.
func (t *Threads) Delete(ctx context.Context, usr *usermodel.User, sessionID string) error {
	session, err := t.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := auth.CheckOwnerOrAdmin(usr, session.UserID); err != nil {
		return err
	}
	if err := t.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("chat: delete session: %w", err)
	}
	t.logger.Info("session deleted", "session", sessionID, "by", usr.ID)
	return nil
}
