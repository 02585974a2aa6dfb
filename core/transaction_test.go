package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*TransactionManager, string) {
	t.Helper()
	dir := t.TempDir()
	writer := NewAtomicWriter(AtomicWriteConfig{LockTimeout: time.Second})
	return NewTransactionManager(filepath.Join(dir, "tx"), writer), dir
}

func TestTransactionManager_BeginAndCommit(t *testing.T) {
	tm, _ := newTestManager(t)

	tx, err := tm.BeginTransaction("rewrite $a + $a")
	if err != nil {
		t.Fatalf("BeginTransaction failed: %v", err)
	}
	if tx.Status != TxPending || tx.ID == "" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if !tm.Active() {
		t.Error("transaction should be active")
	}

	if _, err := tm.BeginTransaction("second"); !errors.Is(err, ErrTransactionActive) {
		t.Errorf("second begin error = %v, want ErrTransactionActive", err)
	}

	if err := tm.CommitTransaction(); err != nil {
		t.Fatalf("CommitTransaction failed: %v", err)
	}
	if tm.Active() {
		t.Error("transaction still active after commit")
	}

	loaded, err := tm.LoadTransaction(tx.ID)
	if err != nil {
		t.Fatalf("LoadTransaction failed: %v", err)
	}
	if loaded.Status != TxCommitted {
		t.Errorf("status = %s, want %s", loaded.Status, TxCommitted)
	}
	if loaded.Description != "rewrite $a + $a" {
		t.Errorf("description = %q", loaded.Description)
	}
}

func TestTransactionManager_RequiresActiveTransaction(t *testing.T) {
	tm, _ := newTestManager(t)

	if _, err := tm.AddOperation(OpModify, "x.js"); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("AddOperation error = %v", err)
	}
	if err := tm.CompleteOperation("x.js", nil); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("CompleteOperation error = %v", err)
	}
	if err := tm.CommitTransaction(); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("CommitTransaction error = %v", err)
	}
	if err := tm.RollbackTransaction(); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("RollbackTransaction error = %v", err)
	}
}

func TestTransactionManager_RollbackRestoresFiles(t *testing.T) {
	tm, dir := newTestManager(t)
	modified := filepath.Join(dir, "a.js")
	created := filepath.Join(dir, "b.js")
	os.WriteFile(modified, []byte("foo(1);\n"), 0o644)

	if _, err := tm.BeginTransaction("test"); err != nil {
		t.Fatal(err)
	}

	op, err := tm.AddOperation(OpModify, modified)
	if err != nil {
		t.Fatalf("AddOperation failed: %v", err)
	}
	if op.BackupPath == "" || op.Checksum != Digest("foo(1);\n") {
		t.Errorf("operation not snapshotted: %+v", op)
	}
	os.WriteFile(modified, []byte("bar(1);\n"), 0o644)
	if err := tm.CompleteOperation(modified, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := tm.AddOperation(OpCreate, created); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(created, []byte("new();\n"), 0o644)
	if err := tm.CompleteOperation(created, nil); err != nil {
		t.Fatal(err)
	}

	if err := tm.RollbackTransaction(); err != nil {
		t.Fatalf("RollbackTransaction failed: %v", err)
	}

	if content, _ := os.ReadFile(modified); string(content) != "foo(1);\n" {
		t.Errorf("modified file = %q after rollback", content)
	}
	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Error("created file survived rollback")
	}
}

func TestTransactionManager_CommitRefusesFailedOperations(t *testing.T) {
	tests := []struct {
		name     string
		complete bool
		opErr    error
	}{
		{name: "incomplete"},
		{name: "failed", complete: true, opErr: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, dir := newTestManager(t)
			path := filepath.Join(dir, "a.js")
			os.WriteFile(path, []byte("x"), 0o644)

			tm.BeginTransaction("test")
			tm.AddOperation(OpModify, path)
			if tt.complete {
				tm.CompleteOperation(path, tt.opErr)
			}

			if err := tm.CommitTransaction(); err == nil {
				t.Fatal("commit should fail")
			}
			if !tm.Active() {
				t.Error("failed commit should leave the transaction open")
			}
			if err := tm.RollbackTransaction(); err != nil {
				t.Errorf("rollback failed: %v", err)
			}
		})
	}
}

func TestTransactionManager_ListAndCleanup(t *testing.T) {
	tm, dir := newTestManager(t)

	pending, err := tm.ListPendingTransactions()
	if err != nil || len(pending) != 0 {
		t.Fatalf("empty dir: pending = %v, err = %v", pending, err)
	}

	path := filepath.Join(dir, "a.js")
	os.WriteFile(path, []byte("x"), 0o644)

	done, _ := tm.BeginTransaction("done")
	op, _ := tm.AddOperation(OpModify, path)
	tm.CompleteOperation(path, nil)
	if err := tm.CommitTransaction(); err != nil {
		t.Fatal(err)
	}

	open, _ := tm.BeginTransaction("open")

	pending, err = tm.ListPendingTransactions()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != open.ID {
		t.Errorf("pending = %+v, want only %s", pending, open.ID)
	}

	if err := tm.CleanupOldTransactions(-time.Minute); err != nil {
		t.Fatalf("CleanupOldTransactions failed: %v", err)
	}
	if _, err := tm.LoadTransaction(done.ID); err == nil {
		t.Error("committed transaction log survived cleanup")
	}
	if _, err := os.Stat(op.BackupPath); !os.IsNotExist(err) {
		t.Error("backup survived cleanup")
	}
	if _, err := tm.LoadTransaction(open.ID); err != nil {
		t.Errorf("pending transaction was cleaned up: %v", err)
	}
}

func TestTransactionManager_RecoverInterrupted(t *testing.T) {
	tm, dir := newTestManager(t)
	path := filepath.Join(dir, "a.js")
	if err := os.WriteFile(path, []byte("foo();\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tx, err := tm.BeginTransaction("interrupted")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tm.AddOperation(OpModify, path); err != nil {
		t.Fatal(err)
	}
	// the run dies after writing but before completing the operation
	if err := os.WriteFile(path, []byte("bar();\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// a new process sees the log on disk
	fresh := NewTransactionManager(tm.logDir, tm.writer)
	pending, err := fresh.ListPendingTransactions()
	if err != nil || len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("pending = %+v, err = %v", pending, err)
	}
	if err := fresh.RecoverTransaction(tx.ID); err != nil {
		t.Fatalf("RecoverTransaction failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "foo();\n" {
		t.Errorf("recovered content = %q", content)
	}
	loaded, err := fresh.LoadTransaction(tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != TxRolledBack {
		t.Errorf("status = %s, want %s", loaded.Status, TxRolledBack)
	}
	if err := fresh.RecoverTransaction(tx.ID); err == nil {
		t.Error("recovering a finished transaction should fail")
	}
}
