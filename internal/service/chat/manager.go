package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	chatmodel "github.com/hwpark/chatbot/backend/internal/model/chat"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// ErrSessionContention is returned when the per-user session lock cannot be
// acquired within the bounded wait. The caller may retry the whole request.
var ErrSessionContention = errors.New("chat: session lock contention")

// Manager resolves the active session for a user, creating one when none
// exists or the latest one has expired. The read-decide-write sequence is
// serialized per user so concurrent requests from the same user never
// create duplicate sessions.
type Manager struct {
	sessions store.Sessions
	policy   *ExpirationPolicy
	lockWait time.Duration

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewManager wires the session store and expiration policy.
func NewManager(sessions store.Sessions, policy *ExpirationPolicy, lockWait time.Duration) *Manager {
	return &Manager{
		sessions: sessions,
		policy:   policy,
		lockWait: lockWait,
		locks:    make(map[string]chan struct{}),
	}
}

// GetOrCreateActive returns the user's active session. Contenders for the
// same user wait; after lockWait they fail with ErrSessionContention. No
// lock is held beyond the create-vs-reuse decision.
func (m *Manager) GetOrCreateActive(ctx context.Context, usr *usermodel.User) (*chatmodel.Session, error) {
	release, err := m.acquire(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	latest, err := m.sessions.FindLatestByUser(ctx, usr.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("chat: load latest session: %w", err)
	}
	if latest != nil && !m.policy.IsExpired(latest.LastActivityAt) {
		return latest, nil
	}

	session := &chatmodel.Session{UserID: usr.ID}
	if err := m.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("chat: create session: %w", err)
	}
	return session, nil
}

// acquire takes the user's slot or gives up after the bounded wait.
func (m *Manager) acquire(ctx context.Context, userID string) (func(), error) {
	slot := m.slot(userID)

	timer := time.NewTimer(m.lockWait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-timer.C:
		return nil, ErrSessionContention
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) slot(userID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.locks[userID]
	if !ok {
		slot = make(chan struct{}, 1)
		m.locks[userID] = slot
	}
	return slot
}
