package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads at startup. All values
// are immutable after Load returns.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	AI     AIConfig
	Chat   ChatConfig
	Auth   AuthConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		DB:     DBConfig{Path: getEnvOrDefault("DB_PATH", "chatbot.db")},
		AI:     ai,
		Chat:   chat,
		Auth:   auth,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DBConfig locates the SQLite database file.
type DBConfig struct {
	Path string
}

// AIConfig describes the upstream generation service: credentials, default
// model, per-call timeouts and the retry budget.
type AIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

func loadAIConfig() (AIConfig, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return AIConfig{}, fmt.Errorf("GEMINI_API_KEY is required")
	}

	connectTimeout, err := parseDurationEnv("AI_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return AIConfig{}, err
	}
	readTimeout, err := parseDurationEnv("AI_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}
	writeTimeout, err := parseDurationEnv("AI_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return AIConfig{}, err
	}
	maxAttempts, err := parseIntEnv("AI_MAX_ATTEMPTS", 3)
	if err != nil {
		return AIConfig{}, err
	}
	if maxAttempts < 1 {
		return AIConfig{}, fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1")
	}
	backoffBase, err := parseDurationEnv("AI_BACKOFF_BASE", time.Second)
	if err != nil {
		return AIConfig{}, err
	}
	backoffMax, err := parseDurationEnv("AI_BACKOFF_MAX", 10*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         apiKey,
		Model:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		BaseURL:        getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxAttempts:    maxAttempts,
		BackoffBase:    backoffBase,
		BackoffMax:     backoffMax,
	}, nil
}

// ChatConfig governs session lifecycle behavior.
type ChatConfig struct {
	IdleWindow      time.Duration
	SessionLockWait time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	idleMinutes, err := parseIntEnv("THREAD_IDLE_MINUTES", 30)
	if err != nil {
		return ChatConfig{}, err
	}
	if idleMinutes < 1 {
		return ChatConfig{}, fmt.Errorf("THREAD_IDLE_MINUTES must be at least 1")
	}
	lockWait, err := parseDurationEnv("SESSION_LOCK_WAIT", 5*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		IdleWindow:      time.Duration(idleMinutes) * time.Minute,
		SessionLockWait: lockWait,
	}, nil
}

// AuthConfig holds token-signing material.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	ttl, err := parseDurationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	return AuthConfig{JWTSecret: secret, TokenTTL: ttl}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
