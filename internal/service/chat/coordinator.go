package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	chatmodel "github.com/hwpark/chatbot/backend/internal/model/chat"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/service/ai"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// ErrEmptyQuestion rejects requests whose question is blank.
var ErrEmptyQuestion = errors.New("chat: question is required")

const (
	persistAttempts = 3
	persistBackoff  = 250 * time.Millisecond
)

// Request carries one inbound question. Context is an optional grounding
// block the upstream provider receives as a leading turn.
type Request struct {
	Question  string
	Context   string
	Streaming bool
	Model     string
}

// Reply is the outcome of a chat request. Exactly one branch is set:
// Exchange for the immediate path (already persisted), Stream for the
// streaming path (delivery branch not yet consumed).
type Reply struct {
	Exchange *chatmodel.Exchange
	Stream   *Fanout
}

// responseStrategy generates the answer for one request and owns
// persistence of the resulting exchange. Adding a response mode means
// adding an implementation, not another branch in the coordinator.
type responseStrategy interface {
	respond(ctx context.Context, session *chatmodel.Session, history []chatmodel.Exchange, req Request) (*Reply, error)
}

// Coordinator orchestrates a chat request: session resolution, history
// loading, strategy dispatch and persistence.
type Coordinator struct {
	manager   *Manager
	exchanges store.Exchanges
	normal    responseStrategy
	streaming responseStrategy

	// background tracks in-flight accumulation writes so shutdown can wait
	// for answers that were already delivered to reach the store.
	background sync.WaitGroup
}

// NewCoordinator wires the session manager, stores and upstream client.
func NewCoordinator(manager *Manager, exchanges store.Exchanges, upstream ai.Client, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		manager:   manager,
		exchanges: exchanges,
	}
	c.normal = &normalStrategy{upstream: upstream, exchanges: exchanges}
	c.streaming = &streamingStrategy{
		upstream:  upstream,
		exchanges: exchanges,
		logger:    logger,
		track:     &c.background,
	}
	return c
}

// Respond resolves the user's active session, loads its history and
// dispatches to the strategy matching the requested response mode.
func (c *Coordinator) Respond(ctx context.Context, usr *usermodel.User, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	session, err := c.manager.GetOrCreateActive(ctx, usr)
	if err != nil {
		return nil, err
	}

	history, err := c.exchanges.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("chat: load history: %w", err)
	}

	strategy := c.normal
	if req.Streaming {
		strategy = c.streaming
	}
	return strategy.respond(ctx, session, history, req)
}

// Drain blocks until background persistence of accumulated answers has
// finished. Called during shutdown.
func (c *Coordinator) Drain() {
	c.background.Wait()
}

// normalStrategy answers synchronously and persists before returning.
type normalStrategy struct {
	upstream  ai.Client
	exchanges store.Exchanges
}

func (s *normalStrategy) respond(ctx context.Context, session *chatmodel.Session, history []chatmodel.Exchange, req Request) (*Reply, error) {
	answer, err := s.upstream.Generate(ctx, req.Question, history, req.Context, req.Model)
	if err != nil {
		return nil, err
	}

	exchange := &chatmodel.Exchange{
		SessionID: session.ID,
		Question:  req.Question,
		Answer:    answer,
	}
	if err := s.exchanges.Append(ctx, exchange); err != nil {
		return nil, fmt.Errorf("chat: persist exchange: %w", err)
	}
	return &Reply{Exchange: exchange}, nil
}

// streamingStrategy returns the delivery branch immediately and persists
// the accumulated answer in the background once the stream completes.
type streamingStrategy struct {
	upstream  ai.Client
	exchanges store.Exchanges
	logger    *slog.Logger
	track     *sync.WaitGroup
}

func (s *streamingStrategy) respond(ctx context.Context, session *chatmodel.Session, history []chatmodel.Exchange, req Request) (*Reply, error) {
	fan := NewFanout(func(ctx context.Context) (ai.ChunkStream, error) {
		return s.upstream.GenerateStream(ctx, req.Question, history, req.Context, req.Model)
	})

	// The upstream read and the persistence write outlive the caller: a
	// delivery-side disconnect must not truncate accumulation.
	runCtx := context.WithoutCancel(ctx)
	s.track.Add(2)
	go func() {
		defer s.track.Done()
		fan.Run(runCtx)
	}()
	go func() {
		defer s.track.Done()
		s.accumulate(runCtx, fan, session, req.Question)
	}()

	return &Reply{Stream: fan}, nil
}

// accumulate concatenates the accumulation branch into the final answer and
// persists it. Failures here are operational events, never surfaced to the
// caller: the stream has already been delivered.
func (s *streamingStrategy) accumulate(ctx context.Context, fan *Fanout, session *chatmodel.Session, question string) {
	var builder strings.Builder
	for delta := range fan.Accumulation() {
		builder.WriteString(delta)
	}

	if err := fan.Err(); err != nil {
		s.logger.Error("streaming generation failed, answer not persisted",
			"session", session.ID, "error", err)
		return
	}

	answer := builder.String()
	if answer == "" {
		s.logger.Info("upstream stream produced no chunks, skipping persistence",
			"session", session.ID)
		return
	}

	exchange := &chatmodel.Exchange{
		SessionID: session.ID,
		Question:  question,
		Answer:    answer,
	}

	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = s.exchanges.Append(ctx, exchange); err == nil {
			return
		}
		if attempt < persistAttempts {
			time.Sleep(time.Duration(attempt) * persistBackoff)
		}
	}
	s.logger.Error("failed to persist accumulated answer",
		"session", session.ID, "attempts", persistAttempts, "error", err)
}
