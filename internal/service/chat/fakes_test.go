package chat

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	chatmodel "github.com/hwpark/chatbot/backend/internal/model/chat"
	"github.com/hwpark/chatbot/backend/internal/service/ai"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// memSessions is an in-memory store.Sessions used across the package tests.
type memSessions struct {
	mu    sync.Mutex
	items map[string]*chatmodel.Session
	saves int
}

func newMemSessions() *memSessions {
	return &memSessions{items: make(map[string]*chatmodel.Session)}
}

func (m *memSessions) Save(_ context.Context, session *chatmodel.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}
	copied := *session
	m.items[session.ID] = &copied
	m.saves++
	return nil
}

func (m *memSessions) FindLatestByUser(_ context.Context, userID string) (*chatmodel.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *chatmodel.Session
	for _, s := range m.items {
		if s.UserID != userID {
			continue
		}
		if latest == nil || s.LastActivityAt.After(latest.LastActivityAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (m *memSessions) FindByID(_ context.Context, id string) (*chatmodel.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memSessions) ListByUser(_ context.Context, userID string, page store.Page) ([]chatmodel.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chatmodel.Session
	for _, s := range m.items {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if page.Asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, int64(len(out)), nil
}

func (m *memSessions) ListAll(_ context.Context, page store.Page) ([]chatmodel.Session, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chatmodel.Session
	for _, s := range m.items {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if page.Asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, int64(len(out)), nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// setLastActivity rewrites a session's last-activity timestamp for tests
// that need to age a session artificially.
func (m *memSessions) setLastActivity(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.items[id]; ok {
		s.LastActivityAt = at
	}
}

func (m *memSessions) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// memExchanges is an in-memory store.Exchanges. Appends bump the owning
// session's last-activity timestamp the way the real store does.
type memExchanges struct {
	mu       sync.Mutex
	items    []chatmodel.Exchange
	sessions *memSessions
	failures int
}

func newMemExchanges(sessions *memSessions) *memExchanges {
	return &memExchanges{sessions: sessions}
}

func (m *memExchanges) Append(_ context.Context, exchange *chatmodel.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return context.DeadlineExceeded
	}
	if exchange.ID == "" {
		exchange.ID = uuid.NewString()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}
	m.items = append(m.items, *exchange)
	if m.sessions != nil {
		m.sessions.mu.Lock()
		if s, ok := m.sessions.items[exchange.SessionID]; ok && s.LastActivityAt.Before(exchange.CreatedAt) {
			s.LastActivityAt = exchange.CreatedAt
		}
		m.sessions.mu.Unlock()
	}
	return nil
}

func (m *memExchanges) FindByID(_ context.Context, id string) (*chatmodel.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			copied := m.items[i]
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memExchanges) FindBySession(_ context.Context, sessionID string) ([]chatmodel.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chatmodel.Exchange
	for _, e := range m.items {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memExchanges) CountSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.items {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memExchanges) FindBetween(_ context.Context, start, end time.Time) ([]store.ExchangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ExchangeRecord
	for _, e := range m.items {
		if !e.CreatedAt.Before(start) && !e.CreatedAt.After(end) {
			out = append(out, store.ExchangeRecord{Exchange: e})
		}
	}
	return out, nil
}

func (m *memExchanges) all() []chatmodel.Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chatmodel.Exchange, len(m.items))
	copy(out, m.items)
	return out
}

// fakeClient is a canned ai.Client.
type fakeClient struct {
	answer    string
	genErr    error
	chunks    []string
	openErr   error
	streamErr error
}

func (c *fakeClient) Generate(_ context.Context, _ string, _ []chatmodel.Exchange, _ string, _ string) (string, error) {
	if c.genErr != nil {
		return "", c.genErr
	}
	return c.answer, nil
}

func (c *fakeClient) GenerateStream(_ context.Context, _ string, _ []chatmodel.Exchange, _ string, _ string) (ai.ChunkStream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return &fakeStream{chunks: c.chunks, err: c.streamErr}, nil
}

// fakeStream replays canned chunks, then err or io.EOF.
type fakeStream struct {
	chunks []string
	err    error
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error { return nil }
