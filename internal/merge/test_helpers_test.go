package merge

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var testDatabaseSequence atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:merge_test_%d?mode=memory&cache=shared", testDatabaseSequence.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&store.User{}, &store.Member{}, &store.Channel{}, &store.Message{}, &store.CurrentUser{}, &query.ScopeChannel{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(Config{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1760000000, 0).UTC() },
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build merge service: %v", err)
	}
	return service
}

func newObservedService(t *testing.T, db *gorm.DB) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	service, err := NewService(Config{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1760000000, 0).UTC() },
		Logger:   zap.New(core),
	})
	if err != nil {
		t.Fatalf("failed to build merge service: %v", err)
	}
	return service, logs
}

func userPayload(id string) UserPayload {
	return UserPayload{
		ID:        id,
		Role:      store.RoleUser,
		CreatedAt: time.Unix(1750000000, 0).UTC(),
		UpdatedAt: time.Unix(1750000100, 0).UTC(),
	}
}
