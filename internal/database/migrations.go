package database

import (
	"errors"
	"time"

	"github.com/lumeno/chatsync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillMemberIdentity = "2026-07-21_backfill_member_identity"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillMemberIdentity, apply: backfillMemberIdentity},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Caches written before the composite member identity was stored per row
// carry an empty member_id.
func backfillMemberIdentity(db *gorm.DB) error {
	return db.Model(&store.Member{}).
		Where("member_id = ''").
		Update("member_id", gorm.Expr("channel_cid || ':' || user_id")).Error
}
