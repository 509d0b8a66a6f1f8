package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"warungku/backend/internal/kv"
)

func TestUpdateRollsBackOnClosureError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	boom := errors.New("boom")
	err = s.Update(func(tx kv.Tx) error {
		if err := tx.Put("orders", []byte(`[1]`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected closure error back, got %v", err)
	}

	_ = s.View(func(tx kv.Tx) error {
		blob, _ := tx.Get("orders")
		if blob != nil {
			t.Fatalf("failed transaction leaked a write: %s", blob)
		}
		return nil
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Update(func(tx kv.Tx) error {
		return tx.Put("products", []byte(`[{"id":"p1"}]`))
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	_ = s.View(func(tx kv.Tx) error {
		blob, err := tx.Get("products")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(blob) != `[{"id":"p1"}]` {
			t.Fatalf("unexpected value after reopen: %s", blob)
		}
		return nil
	})
}

func TestViewIsReadOnly(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	err = s.View(func(tx kv.Tx) error {
		return tx.Put("products", []byte(`[]`))
	})
	if !errors.Is(err, kv.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}
