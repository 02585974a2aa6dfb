package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Stage statuses.
const (
	StatusPending = "pending"
	StatusApplied = "applied"
	StatusExpired = "expired"
)

// Stage is a rewrite of one file computed by a staged replace and kept for
// review until it is applied, dropped or expires.
type Stage struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	SessionID string `gorm:"type:varchar(36);index"`

	// Operation details
	Language    string `gorm:"type:varchar(50);not null"`
	Pattern     string `gorm:"type:text;not null"`
	Replacement string `gorm:"type:text"`
	Predicates  datatypes.JSON // capture name to regular expression

	// Target
	FilePath   string `gorm:"type:varchar(1024);index"`
	MatchCount int

	// Content
	Original string `gorm:"type:text"`
	Modified string `gorm:"type:text"`
	Diff     string `gorm:"type:text"`

	// Captures of every match, in match order: a list of capture name to
	// printed text maps.
	Captures datatypes.JSON

	// Checksums for validation
	BaseDigest  string `gorm:"type:varchar(64)"` // SHA256 of original
	AfterDigest string `gorm:"type:varchar(64)"` // SHA256 of modified

	// Status tracking
	Status    string    `gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"index"`
	AppliedAt *time.Time

	// Relationships
	Apply *Apply `gorm:"foreignKey:StageID"`
}

// Expired reports whether a pending stage is past its expiry at now.
func (s *Stage) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// CaptureList decodes Captures.
func (s *Stage) CaptureList() ([]map[string]string, error) {
	if len(s.Captures) == 0 {
		return nil, nil
	}
	var out []map[string]string
	if err := json.Unmarshal(s.Captures, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WhereClauses decodes Predicates.
func (s *Stage) WhereClauses() (map[string]string, error) {
	if len(s.Predicates) == 0 {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(s.Predicates, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply records a stage written to disk.
type Apply struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	StageID string `gorm:"type:varchar(36);uniqueIndex"`

	// Checksums for validation
	BaseDigest  string `gorm:"type:varchar(64)"`
	AfterDigest string `gorm:"type:varchar(64)"`

	// Metadata
	AppliedBy string    `gorm:"type:varchar(100)"`
	AppliedAt time.Time `gorm:"autoCreateTime"`

	// Relationship
	Stage Stage `gorm:"foreignKey:StageID"`
}

// Session groups the stages produced by one staged replace run.
type Session struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	StartedAt   time.Time `gorm:"autoCreateTime"`
	Pattern     string    `gorm:"type:text"`
	Replacement string    `gorm:"type:text"`
	Root        string    `gorm:"type:varchar(1024)"`

	// Statistics
	StagesCount  int `gorm:"default:0"`
	AppliesCount int `gorm:"default:0"`
}

// TableName customizations for cleaner names
func (Stage) TableName() string   { return "stages" }
func (Apply) TableName() string   { return "applies" }
func (Session) TableName() string { return "sessions" }
