package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rubberart7/GameDex-sub001/internal/games"
	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"github.com/rubberart7/GameDex-sub001/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
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

	if err := db.AutoMigrate(schemaModels()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("path", path))
	return db, nil
}

func schemaModels() []any {
	return []any{
		&users.User{},
		&games.Game{},
		&games.CollectionItem{},
		&recommendations.CacheEntry{},
		&migrationRecord{},
	}
}
