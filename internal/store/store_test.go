package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
	"github.com/hwpark/chatbot/backend/internal/model/user"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func mustSaveUser(t *testing.T, db *gorm.DB, email string) *user.User {
	t.Helper()
	u := &user.User{Email: email, Password: "hash", Name: "tester", Role: user.RoleMember}
	require.NoError(t, NewUserStore(db).Save(context.Background(), u))
	return u
}

func mustSaveSession(t *testing.T, db *gorm.DB, userID string) *chat.Session {
	t.Helper()
	s := &chat.Session{UserID: userID}
	require.NoError(t, NewSessionStore(db).Save(context.Background(), s))
	return s
}

func mustAppendExchange(t *testing.T, db *gorm.DB, sessionID, question string, at time.Time) *chat.Exchange {
	t.Helper()
	e := &chat.Exchange{SessionID: sessionID, Question: question, Answer: "a", CreatedAt: at}
	require.NoError(t, NewExchangeStore(db).Append(context.Background(), e))
	return e
}
