package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
	"github.com/hwpark/chatbot/backend/internal/model/feedback"
	"github.com/hwpark/chatbot/backend/internal/model/user"
)

// Open connects to the SQLite database at path and enables foreign keys so
// session deletion cascades to exchanges.
func Open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return db, nil
}

// AllModels lists every persisted model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&user.User{},
		&chat.Session{},
		&chat.Exchange{},
		&feedback.Feedback{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: auto-migrate: %w", err)
	}
	return nil
}
