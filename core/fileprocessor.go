package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// DefaultTransactionDir is where transaction logs and backups are kept,
// relative to the working directory.
const DefaultTransactionDir = ".astmorph/transactions"

// ProviderRegistry interface for provider lookup
type ProviderRegistry interface {
	Get(language string) (Provider, bool)
}

// Provider interface for language-specific operations
type Provider interface {
	Language() string
	Query(source string, query FindQuery) QueryResult
	Transform(source string, op TransformOp) TransformResult
}

// FileProcessor handles file-based transformations using providers
type FileProcessor struct {
	walker        *FileWalker
	providers     ProviderRegistry
	workers       int
	atomicWriter  *AtomicWriter
	txManager     *TransactionManager
	safetyEnabled bool
	log           *slog.Logger
}

// ProcessorOption configures a FileProcessor.
type ProcessorOption func(*FileProcessor)

// WithLogger sets the processor logger.
func WithLogger(log *slog.Logger) ProcessorOption {
	return func(fp *FileProcessor) {
		if log != nil {
			fp.log = log
		}
	}
}

// WithWorkers sets how many files are processed in parallel.
func WithWorkers(n int) ProcessorOption {
	return func(fp *FileProcessor) {
		if n > 0 {
			fp.workers = n
		}
	}
}

// WithTransactionDir moves transaction logs and backups.
func WithTransactionDir(dir string) ProcessorOption {
	return func(fp *FileProcessor) {
		if dir != "" {
			fp.txManager = NewTransactionManager(dir, fp.atomicWriter)
		}
	}
}

// NewFileProcessor creates a new file processor
func NewFileProcessor(providerRegistry ProviderRegistry, opts ...ProcessorOption) *FileProcessor {
	atomicConfig := DefaultAtomicConfig()
	atomicConfig.BackupOriginal = false // transactions snapshot files themselves

	return NewFileProcessorWithSafety(providerRegistry, true, atomicConfig, opts...)
}

// NewFileProcessorWithSafety creates a processor with configurable safety settings
func NewFileProcessorWithSafety(
	providerRegistry ProviderRegistry,
	safetyEnabled bool,
	atomicConfig AtomicWriteConfig,
	opts ...ProcessorOption,
) *FileProcessor {
	atomicWriter := NewAtomicWriter(atomicConfig)

	fp := &FileProcessor{
		walker:        NewFileWalker(),
		providers:     providerRegistry,
		workers:       8, // Parallel file processing workers
		atomicWriter:  atomicWriter,
		txManager:     NewTransactionManager(DefaultTransactionDir, atomicWriter),
		safetyEnabled: safetyEnabled,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(fp)
	}
	atomicWriter.SetLogger(fp.log)
	return fp
}

// Writer returns the atomic writer used for safe writes.
func (fp *FileProcessor) Writer() *AtomicWriter { return fp.atomicWriter }

// QueryFiles searches for pattern matches across multiple files. Matches
// are ordered by file path, then by position.
func (fp *FileProcessor) QueryFiles(ctx context.Context, scope FileScope, query FindQuery) ([]FileMatch, error) {
	start := time.Now()

	// Discover files
	results, err := fp.walker.Walk(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to walk files: %w", err)
	}

	// Process files in parallel
	matches := make(chan []FileMatch, fp.workers)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < fp.workers; i++ {
		wg.Add(1)
		go fp.queryWorker(ctx, results, query, matches, &wg)
	}

	go func() {
		wg.Wait()
		close(matches)
	}()

	// Collect results
	var allMatches []FileMatch
	for fileMatches := range matches {
		allMatches = append(allMatches, fileMatches...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(allMatches, func(i, j int) bool {
		if allMatches[i].FilePath != allMatches[j].FilePath {
			return allMatches[i].FilePath < allMatches[j].FilePath
		}
		if allMatches[i].Location.Line != allMatches[j].Location.Line {
			return allMatches[i].Location.Line < allMatches[j].Location.Line
		}
		return allMatches[i].Location.Column < allMatches[j].Location.Column
	})

	fp.log.Info("query completed",
		"pattern", query.Pattern,
		"matches", len(allMatches),
		"duration", time.Since(start))

	return allMatches, nil
}

// TransformFiles applies transformations across multiple files
func (fp *FileProcessor) TransformFiles(ctx context.Context, op FileTransformOp) (*FileTransformResult, error) {
	start := time.Now()

	// Start transaction if safety enabled
	var tx *TransactionLog
	if fp.safetyEnabled && !op.DryRun {
		var err error
		tx, err = fp.txManager.BeginTransaction(fmt.Sprintf("Transform files: %s", op.Pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		// Ensure cleanup on any error
		defer func() {
			if tx != nil && fp.txManager.Active() {
				if err := fp.txManager.RollbackTransaction(); err != nil {
					fp.log.Error("rollback failed", "transaction", tx.ID, "error", err)
				}
			}
		}()
	}

	// Discover files
	walkResults, err := fp.walker.Walk(ctx, op.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to walk files: %w", err)
	}

	// Collect file paths
	var filePaths []WalkResult
	for result := range walkResults {
		if result.Error != nil {
			continue
		}
		if _, ok := fp.providers.Get(result.Language); ok {
			filePaths = append(filePaths, result)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanDuration := time.Since(start)
	transformStart := time.Now()

	// Process files in parallel
	resultChan := make(chan FileTransformDetail, len(filePaths))
	var wg sync.WaitGroup

	// Create semaphore for controlled parallelism
	semaphore := make(chan struct{}, fp.workers)

	for _, walkResult := range filePaths {
		wg.Add(1)
		go func(wr WalkResult) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			detail := fp.transformFile(wr, op, tx)
			resultChan <- detail
		}(walkResult)
	}

	// Collect results
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var details []FileTransformDetail
	var totalMatches int
	var filesModified int
	var hasErrors bool

	for detail := range resultChan {
		details = append(details, detail)
		totalMatches += detail.MatchCount
		if detail.Modified {
			filesModified++
		}
		if detail.Error != "" {
			hasErrors = true
			fp.log.Warn("file transform failed", "file", detail.FilePath, "error", detail.Error)
		}
	}
	sort.Slice(details, func(i, j int) bool { return details[i].FilePath < details[j].FilePath })

	transformDuration := time.Since(transformStart)

	// Handle transaction completion
	if fp.safetyEnabled && !op.DryRun && tx != nil {
		if hasErrors {
			if err := fp.txManager.RollbackTransaction(); err != nil {
				return nil, fmt.Errorf("failed to rollback transaction: %w", err)
			}
		} else {
			if err := fp.txManager.CommitTransaction(); err != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", err)
			}
		}
	}

	fp.log.Info("transform completed",
		"pattern", op.Pattern,
		"files", len(filePaths),
		"modified", filesModified,
		"matches", totalMatches,
		"dry_run", op.DryRun)

	return &FileTransformResult{
		FilesScanned:      len(filePaths),
		FilesModified:     filesModified,
		TotalMatches:      totalMatches,
		ScanDuration:      scanDuration.Milliseconds(),
		TransformDuration: transformDuration.Milliseconds(),
		Files:             details,
		TransactionID: func() string {
			if tx != nil {
				return tx.ID
			}
			return ""
		}(),
	}, nil
}

// queryWorker processes files for queries in parallel
func (fp *FileProcessor) queryWorker(
	ctx context.Context,
	results <-chan WalkResult,
	query FindQuery,
	matches chan<- []FileMatch,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}

			if result.Error != nil {
				continue
			}

			fileMatches := fp.queryFile(result, query)
			if len(fileMatches) > 0 {
				matches <- fileMatches
			}
		}
	}
}

// queryFile searches for matches in a single file
func (fp *FileProcessor) queryFile(walkResult WalkResult, query FindQuery) []FileMatch {
	// Read file content
	content, err := os.ReadFile(walkResult.Path)
	if err != nil {
		return nil
	}

	// Get provider for language
	provider, exists := fp.providers.Get(walkResult.Language)
	if !exists {
		return nil // Skip unsupported languages
	}

	// Execute query
	result := provider.Query(string(content), query)
	if result.Error != nil {
		fp.log.Debug("query skipped file", "file", walkResult.Path, "error", result.Error)
		return nil
	}

	// Convert to FileMatch
	var fileMatches []FileMatch
	for _, match := range result.Matches {
		fileMatch := FileMatch{
			Match:    match,
			FilePath: walkResult.Path,
			FileSize: walkResult.Info.Size(),
			ModTime:  walkResult.Info.ModTime().Unix(),
			Language: walkResult.Language,
		}
		// Update location to include file
		fileMatch.Location.File = walkResult.Path
		fileMatches = append(fileMatches, fileMatch)
	}

	return fileMatches
}

// transformFile applies transformation to a single file
func (fp *FileProcessor) transformFile(
	walkResult WalkResult,
	op FileTransformOp,
	tx *TransactionLog,
) FileTransformDetail {
	detail := FileTransformDetail{
		FilePath:     walkResult.Path,
		Language:     walkResult.Language,
		OriginalSize: walkResult.Info.Size(),
	}

	// Check if we can process this language
	provider, exists := fp.providers.Get(walkResult.Language)
	if !exists {
		detail.Error = fmt.Sprintf("no provider for language: %s", walkResult.Language)
		return detail
	}

	// Read file content
	content, err := os.ReadFile(walkResult.Path)
	if err != nil {
		detail.Error = fmt.Sprintf("failed to read file: %v", err)
		return detail
	}

	originalContent := string(content)

	// Apply transformation
	result := provider.Transform(originalContent, op.TransformOp)
	if result.Error != nil {
		if result.MatchCount == 0 && result.Modified == originalContent {
			// No match in this file is not a failure of the batch.
			return detail
		}
		detail.Error = fmt.Sprintf("transformation failed: %v", result.Error)
		return detail
	}

	detail.MatchCount = result.MatchCount
	detail.Diff = result.Diff
	detail.Matches = result.Matches
	detail.Original = originalContent
	detail.Result = result.Modified

	// Check if content actually changed
	if result.Modified == originalContent {
		return detail // No changes
	}

	detail.Modified = true
	detail.ModifiedSize = int64(len(result.Modified))

	// Register operation in transaction if safety enabled
	if fp.safetyEnabled && !op.DryRun && tx != nil {
		txOp, err := fp.txManager.AddOperation(OpModify, walkResult.Path)
		if err != nil {
			detail.Error = fmt.Sprintf("failed to register transaction operation: %v", err)
			return detail
		}
		detail.BackupPath = txOp.BackupPath
	} else if op.Backup {
		// Create backup if requested (when not using transactions)
		backupPath := walkResult.Path + ".bak"
		if err := fp.createBackup(walkResult.Path, backupPath); err != nil {
			detail.Error = fmt.Sprintf("failed to create backup: %v", err)
			return detail
		}
		detail.BackupPath = backupPath
	}

	// Write modified content (unless dry run)
	if !op.DryRun {
		var writeErr error
		if fp.safetyEnabled {
			// Use atomic writer with locking
			writeErr = fp.atomicWriter.WriteFile(walkResult.Path, result.Modified)
		} else {
			// Use simple write
			writeErr = fp.writeFile(walkResult.Path, result.Modified)
		}

		if writeErr != nil {
			detail.Error = fmt.Sprintf("failed to write file: %v", writeErr)

			// Mark operation as failed in transaction
			if fp.safetyEnabled && tx != nil {
				fp.txManager.CompleteOperation(walkResult.Path, writeErr)
			}
			return detail
		}

		// Mark operation as completed in transaction
		if fp.safetyEnabled && tx != nil {
			if err := fp.txManager.CompleteOperation(walkResult.Path, nil); err != nil {
				detail.Error = fmt.Sprintf("failed to complete transaction operation: %v", err)
				return detail
			}
		}
	}

	return detail
}

// createBackup creates a backup copy of the file
func (fp *FileProcessor) createBackup(originalPath, backupPath string) error {
	content, err := os.ReadFile(originalPath)
	if err != nil {
		return err
	}

	return os.WriteFile(backupPath, content, 0o644)
}

// writeFile writes content to file with proper permissions
func (fp *FileProcessor) writeFile(path, content string) error {
	// Get original file info for permissions
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	// Write with original permissions
	return os.WriteFile(path, []byte(content), info.Mode())
}

// ValidateChanges verifies that all transformations are valid
func (fp *FileProcessor) ValidateChanges(details []FileTransformDetail) error {
	for _, detail := range details {
		if detail.Error != "" {
			return fmt.Errorf("file %s has error: %s", detail.FilePath, detail.Error)
		}
	}

	return nil
}

// GenerateChecksum returns the SHA-256 digest of a file, the same digest
// staged rewrites record as their base.
func (fp *FileProcessor) GenerateChecksum(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return Digest(string(content)), nil
}

// EnableSafety enables/disables safety features at runtime
func (fp *FileProcessor) EnableSafety(enabled bool) {
	fp.safetyEnabled = enabled
}

// IsSafetyEnabled returns current safety status
func (fp *FileProcessor) IsSafetyEnabled() bool {
	return fp.safetyEnabled
}

// Cleanup releases all resources and locks
func (fp *FileProcessor) Cleanup() {
	if fp.atomicWriter != nil {
		fp.atomicWriter.Cleanup()
	}
}
