package store

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
)

// Both local drivers must satisfy the same contract.
func kvContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	// Missing key
	_, ok, err := kv.Get(ctx, "nextstep_missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Error("expected missing key to report absent")
	}

	// Set then get
	if err := kv.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := kv.Get(ctx, KeyTheme)
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if v != "dark" {
		t.Errorf("expected dark, got %q", v)
	}

	// Overwrite
	if err := kv.Set(ctx, KeyTheme, "light"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _, _ = kv.Get(ctx, KeyTheme)
	if v != "light" {
		t.Errorf("expected light after overwrite, got %q", v)
	}

	// Keys by prefix
	if err := kv.Set(ctx, MessageKey("abc"), "[]"); err != nil {
		t.Fatalf("set message key: %v", err)
	}
	if err := kv.Set(ctx, "other_tenant", "x"); err != nil {
		t.Fatalf("set foreign key: %v", err)
	}
	keys, err := kv.Keys(ctx, Prefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{MessageKey("abc"), KeyTheme}
	sort.Strings(want)
	if len(keys) != len(want) {
		t.Fatalf("expected %d prefixed keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}

	// Delete is idempotent
	if err := kv.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := kv.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	_, ok, _ = kv.Get(ctx, KeyTheme)
	if ok {
		t.Error("expected key absent after delete")
	}
}

func TestMemory_Contract(t *testing.T) {
	kvContract(t, NewMemory())
}

func TestSQLite_Contract(t *testing.T) {
	kv, err := NewSQLite(filepath.Join(t.TempDir(), "nextstep.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer kv.Close()
	kvContract(t, kv)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nextstep.db")
	ctx := context.Background()

	kv, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := kv.Set(ctx, KeyUsername, "Priya"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	kv, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer kv.Close()
	v, ok, err := kv.Get(ctx, KeyUsername)
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if v != "Priya" {
		t.Errorf("expected Priya, got %q", v)
	}
}
