package wal

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestBeginCommit проверяет жизненный цикл транзакции: pending → committed.
func TestBeginCommit(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	entry, err := w.Begin(OpFileCreate, "file-1", "")
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if entry.Status != StatusPending {
		t.Errorf("статус: ожидалось %s, получено %s", StatusPending, entry.Status)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ожидалась 1 pending запись, получено %d", len(pending))
	}

	if err := w.Commit(entry.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	pending, err = w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("после коммита не должно быть pending записей, получено %d", len(pending))
	}
}

// TestSetNewHandle проверяет фиксацию handle нового blob в записи.
func TestSetNewHandle(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	entry, err := w.Begin(OpContentReplace, "file-1", "old-handle")
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}

	if err := w.SetNewHandle(entry.TransactionID, "new-handle"); err != nil {
		t.Fatalf("ошибка фиксации handle: %v", err)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ожидалась 1 pending запись, получено %d", len(pending))
	}
	if pending[0].OldHandle != "old-handle" {
		t.Errorf("old_handle: ожидалось old-handle, получено %s", pending[0].OldHandle)
	}
	if pending[0].NewHandle != "new-handle" {
		t.Errorf("new_handle: ожидалось new-handle, получено %s", pending[0].NewHandle)
	}
}

// TestDoubleComplete проверяет отказ повторного завершения транзакции.
func TestDoubleComplete(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	entry, err := w.Begin(OpFileCreate, "file-1", "")
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}

	if err := w.Rollback(entry.TransactionID); err != nil {
		t.Fatalf("ошибка отката: %v", err)
	}

	if err := w.Commit(entry.TransactionID); err == nil {
		t.Error("ожидалась ошибка коммита завершённой транзакции")
	}
}

// TestCleanCompleted проверяет очистку завершённых записей журнала.
func TestCleanCompleted(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	committed, err := w.Begin(OpFileCreate, "file-1", "")
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if err := w.Commit(committed.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	stillPending, err := w.Begin(OpFileCreate, "file-2", "")
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}

	cleaned, err := w.CleanCompleted()
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("ожидалась очистка 1 записи, очищено %d", cleaned)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if len(pending) != 1 || pending[0].TransactionID != stillPending.TransactionID {
		t.Error("pending запись не должна удаляться при очистке")
	}
}
