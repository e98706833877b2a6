package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hwpark/chatbot/backend/internal/auth"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

var (
	ErrDuplicateEmail     = errors.New("user: email already registered")
	ErrInvalidCredentials = errors.New("user: invalid credentials")
)

// Service handles account signup and login.
type Service struct {
	users  store.Users
	tokens *auth.TokenProvider
	logger *slog.Logger
}

// NewService wires the user store and token provider.
func NewService(users store.Users, tokens *auth.TokenProvider, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// LoginResult is returned by both SignUp and Login.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
}

// SignUp registers a new member account and issues its first token.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user: check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("user: hash password: %w", err)
	}

	usr := &usermodel.User{
		Email:    email,
		Password: string(hash),
		Name:     name,
		Role:     usermodel.RoleMember,
	}
	if err := s.users.Save(ctx, usr); err != nil {
		return nil, fmt.Errorf("user: save account: %w", err)
	}

	s.logger.Info("account created", "email", usr.Email)
	return s.issue(usr)
}

// Login verifies credentials and issues a token. Lookup and password
// failures are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	usr, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user: load account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(usr.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(usr)
}

func (s *Service) issue(usr *usermodel.User) (*LoginResult, error) {
	token, err := s.tokens.Generate(usr.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		Email:       usr.Email,
		Name:        usr.Name,
		Role:        string(usr.Role),
	}, nil
}
