package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/airloom/ventsync/internal/infrastructure/database"
	_ "github.com/airloom/ventsync/migrations"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "ventsync.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first migrate: %v", err)
	}

	// Re-running must be a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var applied int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&applied); err != nil {
		t.Fatalf("counting applied migrations: %v", err)
	}
	if applied == 0 {
		t.Fatal("expected at least one applied migration")
	}

	t.Run("devices table usable", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO devices (device_id, device_type, alias, color, floor, assigned, angle, min_angle, max_angle, created_at, updated_at)
			VALUES ('vent-1', 'vent', 'Living Room', '#607d8b', '1', 0, 45, 0, 90, '2026-08-15T10:00:00Z', '2026-08-15T10:00:00Z')
		`)
		if err != nil {
			t.Fatalf("inserting device: %v", err)
		}

		var deviceType string
		if err := db.QueryRowContext(ctx,
			"SELECT device_type FROM devices WHERE device_id = ?", "vent-1",
		).Scan(&deviceType); err != nil {
			t.Fatalf("selecting device: %v", err)
		}
		if deviceType != "vent" {
			t.Errorf("device_type = %q, want %q", deviceType, "vent")
		}
	})
}
