package core

// FindQuery is a structural search request.
type FindQuery struct {
	Pattern string `json:"pattern"`
	// Where maps capture names to regular expressions the printed capture
	// must match.
	Where map[string]string `json:"where,omitempty"`
}

// Match is one structural match in a source.
type Match struct {
	Shape    string              `json:"shape"` // expression, statement or sequence
	Kind     string              `json:"kind"`
	Location Location            `json:"location"`
	Content  string              `json:"content,omitempty"`
	Captures map[string]string   `json:"captures,omitempty"`
	Lists    map[string][]string `json:"lists,omitempty"`
}

// Location in source code
type Location struct {
	File      string `json:"file,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line,omitempty"`
	EndColumn int    `json:"end_column,omitempty"`
}

// QueryResult from provider
type QueryResult struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
	Error   error   `json:"-"`
}

// TransformOp is a structural replace request.
type TransformOp struct {
	Pattern     string            `json:"pattern"`
	Replacement string            `json:"replacement"`
	Where       map[string]string `json:"where,omitempty"`
}

// TransformResult from provider
type TransformResult struct {
	Modified   string         `json:"modified"`
	Diff       string         `json:"diff"`
	MatchCount int            `json:"match_count"`
	Matches    []Match        `json:"matches,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      error          `json:"-"`
}

// FileScope defines which files to process in filesystem operations
type FileScope struct {
	Path           string   `json:"path"`                // Root path to scan
	Include        []string `json:"include,omitempty"`   // File patterns to include (*.js, **/*.ts)
	Exclude        []string `json:"exclude,omitempty"`   // File patterns to exclude
	MaxDepth       int      `json:"max_depth,omitempty"` // Max directory depth (0 = unlimited)
	MaxFiles       int      `json:"max_files,omitempty"` // Max files to process (0 = unlimited)
	FollowSymlinks bool     `json:"follow_symlinks"`     // Follow symbolic links
	Language       string   `json:"language,omitempty"`  // Auto-detect by extension if empty
}

// FileTransformOp represents a file-based transformation operation
type FileTransformOp struct {
	TransformOp           // Embedded base operation
	Scope       FileScope `json:"scope"`   // Files to operate on
	DryRun      bool      `json:"dry_run"` // Preview only, don't modify files
	Backup      bool      `json:"backup"`  // Create .bak files before modifying
}

// FileMatch represents a code match with file information
type FileMatch struct {
	Match           // Embedded base match
	FilePath string `json:"file_path"` // Absolute file path
	FileSize int64  `json:"file_size"` // File size in bytes
	ModTime  int64  `json:"mod_time"`  // Last modification time (Unix timestamp)
	Language string `json:"language"`  // Detected language
}

// FileTransformResult represents the result of file-based transformations
type FileTransformResult struct {
	FilesScanned      int                   `json:"files_scanned"`            // Total files processed
	FilesModified     int                   `json:"files_modified"`           // Files actually changed
	TotalMatches      int                   `json:"total_matches"`            // Total matches across all files
	ScanDuration      int64                 `json:"scan_duration_ms"`         // Time spent scanning (ms)
	TransformDuration int64                 `json:"transform_duration_ms"`    // Time spent transforming (ms)
	Files             []FileTransformDetail `json:"files"`                    // Per-file results
	TransactionID     string                `json:"transaction_id,omitempty"` // Transaction ID for rollback
	Error             error                 `json:"-"`
}

// FileTransformDetail represents the transformation result for a single file
type FileTransformDetail struct {
	FilePath     string  `json:"file_path"`
	Language     string  `json:"language"`
	MatchCount   int     `json:"match_count"`
	Modified     bool    `json:"modified"`
	Diff         string  `json:"diff,omitempty"`
	Matches      []Match `json:"matches,omitempty"`
	Error        string  `json:"error,omitempty"`
	BackupPath   string  `json:"backup_path,omitempty"`
	OriginalSize int64   `json:"original_size"`
	ModifiedSize int64   `json:"modified_size"`
	// Original and Result carry file contents for callers that stage
	// changes instead of writing them.
	Original string `json:"-"`
	Result   string `json:"-"`
}
