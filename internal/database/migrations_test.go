package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lumeno/chatsync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsMemberIdentity(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&store.Member{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	member := store.Member{
		ChannelCID: "messaging:general",
		UserID:     "u1",
		MemberID:   "",
	}
	if err := database.Create(&member).Error; err != nil {
		testContext.Fatalf("failed to insert member: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored store.Member
	if err := database.Where("channel_cid = ? AND user_id = ?", member.ChannelCID, member.UserID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload member: %v", err)
	}
	if stored.MemberID != "messaging:general:u1" {
		testContext.Fatalf("expected member identity backfill, got %q", stored.MemberID)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillMemberIdentity).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		testContext.Fatalf("expected error for empty database path")
	}
}
