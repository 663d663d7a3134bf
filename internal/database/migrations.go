package database

import (
	"errors"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDropUnversionedRecommendationPayloads = "2026-10-01_drop_unversioned_recommendation_payloads"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) (int64, error)
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDropUnversionedRecommendationPayloads, apply: dropUnversionedRecommendationPayloads},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		affected, err := migration.apply(db)
		if err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied",
			zap.String("migration", migration.name),
			zap.Int64("rows_affected", affected))
	}
	return nil
}

// dropUnversionedRecommendationPayloads removes cache rows written before the
// payload carried a version; they regenerate on the next request.
func dropUnversionedRecommendationPayloads(db *gorm.DB) (int64, error) {
	result := db.
		Where("CASE WHEN json_valid(payload) THEN json_type(payload, '$.version') IS NULL ELSE 1 END").
		Delete(&recommendations.CacheEntry{})
	return result.RowsAffected, result.Error
}
