package db

import (
	"context"
	"testing"

	"github.com/yungbote/wayfarer-backend/internal/domain/models"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

func TestNewServiceSQLiteAndMigrate(t *testing.T) {
	svc, err := NewService(Config{Driver: DriverSQLite, DSN: "file:db_test?mode=memory&cache=shared"}, logger.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"feedback_record", "model_version", "training_run", "training_lock"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}

	a := &models.Version{Version: "v1", IsActive: true}
	if err := svc.DB().Create(a).Error; err != nil {
		t.Fatalf("create active: %v", err)
	}
	b := &models.Version{Version: "v2", IsActive: true}
	if err := svc.DB().Create(b).Error; err == nil {
		t.Fatalf("expected second active row to violate the partial unique index")
	}
	c := &models.Version{Version: "v3"}
	if err := svc.DB().Create(c).Error; err != nil {
		t.Fatalf("inactive rows are unconstrained: %v", err)
	}
}

func TestNewServiceRejectsUnknownDriver(t *testing.T) {
	if _, err := NewService(Config{Driver: "oracle", DSN: "x"}, logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := NewService(Config{Driver: DriverSQLite}, logger.Nop()); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
