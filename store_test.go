package pathsync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testStoreRoundTrip(t *testing.T, store LocalStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v1" {
		t.Errorf("expected v1, got %s", got)
	}

	// Overwrite.
	if err := store.Set(ctx, "k1", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, _ = store.Get(ctx, "k1")
	if got != "v2" {
		t.Errorf("expected v2, got %s", got)
	}

	if err := store.Remove(ctx, "k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after remove, got %v", err)
	}

	// Removing a missing key is not an error.
	if err := store.Remove(ctx, "k1"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStoreRoundTrip(t, store)

	if store.Size() != 0 {
		t.Errorf("expected empty store, got %d keys", store.Size())
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()
	testStoreRoundTrip(t, store)
}

func TestFileStore_KeysWithSeparators(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	key := "pathsync:progress:s1:p1:3:who"
	if err := store.Set(ctx, key, "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "value" {
		t.Errorf("expected value, got %s", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := NewSQLiteStore(DefaultSQLiteStoreConfig(path))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()
	testStoreRoundTrip(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	store, err := NewSQLiteStore(DefaultSQLiteStoreConfig(path))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Set(ctx, "persist", "yes"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(DefaultSQLiteStoreConfig(path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != "yes" {
		t.Errorf("expected yes, got %s", got)
	}
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	store, err := NewEncryptedStore(ctx, inner, "secret")
	if err != nil {
		t.Fatalf("NewEncryptedStore: %v", err)
	}
	testStoreRoundTrip(t, store)
}

func TestEncryptedStore_CiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	store, err := NewEncryptedStore(ctx, inner, "secret")
	if err != nil {
		t.Fatalf("NewEncryptedStore: %v", err)
	}
	if err := store.Set(ctx, "k", "plaintext-value"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, err := inner.Get(ctx, "k")
	if err != nil {
		t.Fatalf("inner Get: %v", err)
	}
	if raw == "plaintext-value" {
		t.Errorf("value stored unencrypted")
	}
}

func TestEncryptedStore_ReopenWithSamePassword(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	first, err := NewEncryptedStore(ctx, inner, "secret")
	if err != nil {
		t.Fatalf("NewEncryptedStore: %v", err)
	}
	if err := first.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Same password over the same inner store reuses the persisted salt.
	second, err := NewEncryptedStore(ctx, inner, "secret")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != "v" {
		t.Errorf("expected v, got %s", got)
	}

	// Wrong password derives the wrong key and fails to decrypt.
	wrong, err := NewEncryptedStore(ctx, inner, "not-the-password")
	if err != nil {
		t.Fatalf("open with wrong password: %v", err)
	}
	if _, err := wrong.Get(ctx, "k"); err == nil {
		t.Errorf("expected decryption failure with wrong password")
	}
}
