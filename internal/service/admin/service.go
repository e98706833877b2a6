package admin

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hwpark/chatbot/backend/internal/store"
)

// reportBOM lets spreadsheet tools detect UTF-8 in the exported CSV.
var reportBOM = []byte{0xEF, 0xBB, 0xBF}

// Service produces operational statistics and exports for admins.
type Service struct {
	users     store.Users
	exchanges store.Exchanges
	logger    *slog.Logger
}

// NewService wires the stores the admin views read from.
func NewService(users store.Users, exchanges store.Exchanges, logger *slog.Logger) *Service {
	return &Service{users: users, exchanges: exchanges, logger: logger}
}

// Statistics summarizes activity over the trailing 24 hours.
type Statistics struct {
	SignupCount   int64 `json:"signupCount"`
	LoginCount    int64 `json:"loginCount"`
	ExchangeCount int64 `json:"exchangeCount"`
}

// CollectStatistics counts signups and exchanges in the last 24 hours.
// Logins are not tracked separately; each signup implies a login, so the
// signup count is reported for both.
func (s *Service) CollectStatistics(ctx context.Context) (*Statistics, error) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)

	signups, err := s.users.CountBetween(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("admin: count signups: %w", err)
	}
	exchanges, err := s.exchanges.CountSince(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("admin: count exchanges: %w", err)
	}

	return &Statistics{
		SignupCount:   signups,
		LoginCount:    signups,
		ExchangeCount: exchanges,
	}, nil
}

// WriteChatReport streams a CSV of the last 24 hours of exchanges. The
// output starts with a UTF-8 BOM so Excel renders Korean text correctly.
func (s *Service) WriteChatReport(ctx context.Context, w io.Writer) error {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)

	records, err := s.exchanges.FindBetween(ctx, from, now)
	if err != nil {
		return fmt.Errorf("admin: load report rows: %w", err)
	}

	if _, err := w.Write(reportBOM); err != nil {
		return fmt.Errorf("admin: write report: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"exchange_id", "user_id", "user_name", "question", "answer", "created_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("admin: write report header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.UserID,
			rec.UserName,
			rec.Question,
			rec.Answer,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("admin: write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("admin: flush report: %w", err)
	}

	s.logger.Info("chat report generated", "rows", len(records))
	return nil
}
