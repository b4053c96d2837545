package preferences

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/huntsync/internal/notify"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "preferences.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, db
}

func TestMissingPreferenceInitializesFalse(t *testing.T) {
	service, db := newTestService(t)

	enabled, err := service.Enabled(context.Background(), notify.PreferenceSounds)
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}
	if enabled {
		t.Fatalf("expected missing preference to default to disabled")
	}

	var record Record
	if err := db.Where("name = ?", notify.PreferenceSounds).Take(&record).Error; err != nil {
		t.Fatalf("expected preference row to be created: %v", err)
	}
	if record.Value != "false" || record.UpdatedAtSeconds != 1700000000 {
		t.Fatalf("unexpected record %#v", record)
	}
}

func TestSetPreferenceRoundTrip(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if err := service.Set(ctx, notify.PreferenceNative, "TRUE"); err != nil {
		t.Fatalf("set: %v", err)
	}
	enabled, err := service.Enabled(ctx, notify.PreferenceNative)
	if err != nil || !enabled {
		t.Fatalf("expected native notifications enabled, got %v %v", enabled, err)
	}
	if err := service.Set(ctx, notify.PreferenceNative, "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	all, err := service.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all[notify.PreferenceNative] != "false" || all[notify.PreferenceSounds] != "false" {
		t.Fatalf("unexpected preferences %v", all)
	}
}

func TestSetPreferenceValidates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if err := service.Set(ctx, "theme", "true"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if err := service.Set(ctx, notify.PreferenceSounds, "yes"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := service.Get(ctx, "theme"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey from get, got %v", err)
	}
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Fatalf("expected error without database")
	}
}
