package store

import (
	"context"
	"testing"

	"github.com/constructlink/constructlink/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 == "" {
		t.Fatal("expected non-empty secret")
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSetAndGetSetting(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetSetting(ctx, database, "motd", "hello"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := SetSetting(ctx, database, "motd", "replaced"); err != nil {
		t.Fatalf("SetSetting (replace): %v", err)
	}

	got, err := GetSetting(ctx, database, "motd")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "replaced" {
		t.Errorf("expected 'replaced', got %q", got)
	}

	missing, err := GetSetting(ctx, database, "absent")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if missing != "" {
		t.Errorf("expected empty value for absent key, got %q", missing)
	}
}
