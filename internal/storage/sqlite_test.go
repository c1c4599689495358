package storage

import (
	"errors"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	if v, err := parseMigrationVersion("001_local_storage.sql"); err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v; want 1", v, err)
	}
	if _, err := parseMigrationVersion("local_storage.sql"); err == nil {
		t.Error("expected error for file without version prefix")
	}
}

func TestItemRoundTrip(t *testing.T) {
	ls := openTestStore(t).LocalStorage(DefaultOrigin)

	if _, ok, err := ls.GetItem("settings"); err != nil || ok {
		t.Fatalf("GetItem on empty store = ok %v, err %v", ok, err)
	}

	if err := ls.SetItem("settings", `{"grade":3}`); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	v, ok, err := ls.GetItem("settings")
	if err != nil || !ok || v != `{"grade":3}` {
		t.Fatalf("GetItem = %q, %v, %v", v, ok, err)
	}

	// Overwrite and verify upsert works.
	if err := ls.SetItem("settings", `{"grade":7}`); err != nil {
		t.Fatalf("SetItem (overwrite): %v", err)
	}
	v, _, _ = ls.GetItem("settings")
	if v != `{"grade":7}` {
		t.Errorf("value = %q after overwrite", v)
	}

	if err := ls.RemoveItem("settings"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok, _ := ls.GetItem("settings"); ok {
		t.Error("item still present after RemoveItem")
	}
}

func TestItemsPersistAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.LocalStorage(DefaultOrigin).SetItem("k", "v"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, ok, err := s2.LocalStorage(DefaultOrigin).GetItem("k"); err != nil || !ok || v != "v" {
		t.Errorf("GetItem after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestOriginsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	a := s.LocalStorage("app://a")
	b := s.LocalStorage("app://b")

	if err := a.SetItem("theme", "dark"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if _, ok, _ := b.GetItem("theme"); ok {
		t.Error("origin b sees origin a's item")
	}

	keys, err := a.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "theme" {
		t.Errorf("Keys = %v, want [theme]", keys)
	}
}

func TestSetItem_QuotaExceeded(t *testing.T) {
	s := openTestStore(t)
	s.SetQuota(32)
	ls := s.LocalStorage(DefaultOrigin)

	if err := ls.SetItem("k", "small"); err != nil {
		t.Fatalf("SetItem within quota: %v", err)
	}

	err := ls.SetItem("k", strings.Repeat("x", 64))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("SetItem error = %v, want ErrQuotaExceeded", err)
	}

	// The previous value survives a rejected write.
	if v, _, _ := ls.GetItem("k"); v != "small" {
		t.Errorf("value = %q after rejected write, want %q", v, "small")
	}

	// Replacing a key does not count its old value against the quota.
	if err := ls.SetItem("k", strings.Repeat("y", 30)); err != nil {
		t.Errorf("SetItem replacing within quota: %v", err)
	}

	s.SetQuota(0)
	if err := ls.SetItem("k", strings.Repeat("z", 1024)); err != nil {
		t.Errorf("SetItem with quota disabled: %v", err)
	}
}
