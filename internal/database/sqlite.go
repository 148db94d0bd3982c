package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes the local cache database and performs schema
// migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&store.User{},
		&store.Member{},
		&store.Channel{},
		&store.Message{},
		&store.CurrentUser{},
		&query.ScopeChannel{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("cache database initialized", zap.String("path", path))
	}

	return db, nil
}
