package core

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Operation types recorded in a transaction.
const (
	OpModify = "modify"
	OpCreate = "create"
	OpDelete = "delete"
)

// Transaction statuses.
const (
	TxPending    = "pending"
	TxCommitted  = "committed"
	TxRolledBack = "rolled_back"
)

var (
	// ErrNoTransaction is returned when an operation needs an active
	// transaction and none was begun.
	ErrNoTransaction = errors.New("no active transaction")
	// ErrTransactionActive is returned by BeginTransaction while another
	// transaction is open.
	ErrTransactionActive = errors.New("transaction already in progress")
)

// TransactionOperation is one file change inside a transaction.
type TransactionOperation struct {
	Type       string    `json:"type"`
	FilePath   string    `json:"file_path"`
	BackupPath string    `json:"backup_path,omitempty"`
	Checksum   string    `json:"checksum,omitempty"` // digest before the change
	Timestamp  time.Time `json:"timestamp"`
	Completed  bool      `json:"completed"`
	Error      string    `json:"error,omitempty"`
}

// TransactionLog is persisted as <dir>/<id>.json after every change so an
// interrupted rewrite can be found and reverted.
type TransactionLog struct {
	ID          string                 `json:"id"`
	Started     time.Time              `json:"started"`
	Completed   time.Time              `json:"completed"`
	Operations  []TransactionOperation `json:"operations"`
	Status      string                 `json:"status"`
	Description string                 `json:"description"`
}

// TransactionManager runs one transaction at a time over a log directory.
type TransactionManager struct {
	logDir string
	writer *AtomicWriter

	mu      sync.Mutex
	current *TransactionLog
}

// NewTransactionManager creates a transaction manager. The log directory
// is created by the first transaction.
func NewTransactionManager(logDir string, writer *AtomicWriter) *TransactionManager {
	return &TransactionManager{logDir: logDir, writer: writer}
}

// Active reports whether a transaction is open.
func (tm *TransactionManager) Active() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.current != nil
}

// BeginTransaction opens a transaction and writes its initial log.
func (tm *TransactionManager) BeginTransaction(description string) (*TransactionLog, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionActive, tm.current.ID)
	}

	if err := os.MkdirAll(tm.logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create transaction dir: %w", err)
	}
	tx := &TransactionLog{
		ID:          fmt.Sprintf("tx_%d_%s", time.Now().UTC().UnixNano(), randomHex(6)),
		Started:     time.Now(),
		Status:      TxPending,
		Description: description,
	}
	if err := tm.save(tx); err != nil {
		return nil, fmt.Errorf("write transaction log: %w", err)
	}
	tm.current = tx
	return tx, nil
}

// AddOperation records a pending change to filePath. Modifications of an
// existing file snapshot it first.
func (tm *TransactionManager) AddOperation(opType, filePath string) (TransactionOperation, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return TransactionOperation{}, ErrNoTransaction
	}

	op := TransactionOperation{Type: opType, FilePath: filePath, Timestamp: time.Now()}
	if opType == OpModify || opType == OpDelete {
		if content, err := os.ReadFile(filePath); err == nil {
			op.Checksum = Digest(string(content))
			if opType == OpModify {
				op.BackupPath = tm.backupPath(filePath)
				if err := copyWithMode(filePath, op.BackupPath, content); err != nil {
					return op, fmt.Errorf("backup %s: %w", filePath, err)
				}
			}
		}
	}

	tm.current.Operations = append(tm.current.Operations, op)
	if err := tm.save(tm.current); err != nil {
		return op, fmt.Errorf("update transaction log: %w", err)
	}
	return op, nil
}

// CompleteOperation marks the first open operation on filePath as done,
// failed when err is non-nil.
func (tm *TransactionManager) CompleteOperation(filePath string, err error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}

	for i := range tm.current.Operations {
		op := &tm.current.Operations[i]
		if op.FilePath != filePath || op.Completed {
			continue
		}
		op.Completed = true
		if err != nil {
			op.Error = err.Error()
		}
		return tm.save(tm.current)
	}
	return fmt.Errorf("no open operation for %s", filePath)
}

// CommitTransaction closes the transaction. Every operation must have
// completed without error.
func (tm *TransactionManager) CommitTransaction() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}
	for _, op := range tm.current.Operations {
		if !op.Completed || op.Error != "" {
			return fmt.Errorf("cannot commit: %s did not complete", op.FilePath)
		}
	}
	return tm.finish(TxCommitted)
}

// RollbackTransaction reverts completed operations newest first and closes
// the transaction.
func (tm *TransactionManager) RollbackTransaction() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}

	var errs []error
	ops := tm.current.Operations
	for i := len(ops) - 1; i >= 0; i-- {
		if !ops[i].Completed {
			continue
		}
		if err := tm.revert(ops[i]); err != nil {
			errs = append(errs, fmt.Errorf("revert %s: %w", ops[i].FilePath, err))
		}
	}
	if err := tm.finish(TxRolledBack); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RecoverTransaction rolls back a transaction an interrupted run left
// pending. Every recorded operation is reverted, finished or not.
func (tm *TransactionManager) RecoverTransaction(txID string) error {
	tx, err := tm.LoadTransaction(txID)
	if err != nil {
		return err
	}
	if tx.Status != TxPending {
		return fmt.Errorf("transaction %s is %s", txID, tx.Status)
	}

	tm.mu.Lock()
	if tm.current != nil {
		tm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTransactionActive, tm.current.ID)
	}
	for i := range tx.Operations {
		tx.Operations[i].Completed = true
	}
	tm.current = tx
	tm.mu.Unlock()

	return tm.RollbackTransaction()
}

func (tm *TransactionManager) finish(status string) error {
	tm.current.Status = status
	tm.current.Completed = time.Now()
	err := tm.save(tm.current)
	tm.current = nil
	return err
}

func (tm *TransactionManager) revert(op TransactionOperation) error {
	switch op.Type {
	case OpModify:
		if op.BackupPath == "" {
			return errors.New("no backup recorded")
		}
		content, err := os.ReadFile(op.BackupPath)
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		return tm.writer.WriteFile(op.FilePath, string(content))
	case OpCreate:
		if err := os.Remove(op.FilePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	case OpDelete:
		return errors.New("deletes cannot be reverted")
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

// LoadTransaction reads a transaction log by ID.
func (tm *TransactionManager) LoadTransaction(txID string) (*TransactionLog, error) {
	data, err := os.ReadFile(filepath.Join(tm.logDir, txID+".json"))
	if err != nil {
		return nil, fmt.Errorf("read transaction log: %w", err)
	}
	var tx TransactionLog
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("parse transaction log: %w", err)
	}
	return &tx, nil
}

// ListPendingTransactions returns logs that were never committed or rolled
// back. Unreadable logs are skipped.
func (tm *TransactionManager) ListPendingTransactions() ([]TransactionLog, error) {
	logs, err := tm.logs()
	if err != nil {
		return nil, err
	}
	var pending []TransactionLog
	for _, tx := range logs {
		if tx.Status == TxPending {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

// CleanupOldTransactions removes finished logs, and their backups, that
// completed before now minus olderThan.
func (tm *TransactionManager) CleanupOldTransactions(olderThan time.Duration) error {
	logs, err := tm.logs()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-olderThan)
	for _, tx := range logs {
		if tx.Status == TxPending || !tx.Completed.Before(cutoff) {
			continue
		}
		for _, op := range tx.Operations {
			if op.BackupPath != "" {
				os.Remove(op.BackupPath)
			}
		}
		os.Remove(filepath.Join(tm.logDir, tx.ID+".json"))
	}
	return nil
}

func (tm *TransactionManager) logs() ([]TransactionLog, error) {
	entries, err := os.ReadDir(tm.logDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []TransactionLog
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		if tx, err := tm.LoadTransaction(id); err == nil {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (tm *TransactionManager) save(tx *TransactionLog) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tm.logDir, tx.ID+".json"), data, 0o644)
}

// backupPath places the snapshot next to the file so a rename never
// crosses devices.
func (tm *TransactionManager) backupPath(filePath string) string {
	id := "none"
	if tm.current != nil {
		id = tm.current.ID
	}
	return filepath.Join(filepath.Dir(filePath),
		fmt.Sprintf(".astmorph-backup-%s-%s-%s", filepath.Base(filePath), id, randomHex(4)))
}

func copyWithMode(src, dst string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(src); err == nil && info.Mode().Perm() != 0 {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(dst, content, mode); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
