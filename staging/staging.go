// Package staging keeps computed rewrites in the database so they can be
// reviewed before anything touches the working tree.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/termfx/astmorph/core"
	"github.com/termfx/astmorph/models"
)

// DefaultTTL is how long a stage stays applicable.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned for an unknown stage ID.
	ErrNotFound = errors.New("stage not found")
	// ErrNotPending is returned when applying a stage that was already
	// applied or expired.
	ErrNotPending = errors.New("stage is not pending")
	// ErrExpired is returned when applying a stage past its expiry.
	ErrExpired = errors.New("stage expired")
)

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the lifetime of new stages.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager creates, lists and applies stages.
type Manager struct {
	db     *gorm.DB
	writer *core.AtomicWriter
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// New returns a manager storing stages in db and applying them with writer.
func New(db *gorm.DB, writer *core.AtomicWriter, opts ...Option) *Manager {
	m := &Manager{
		db:     db,
		writer: writer,
		ttl:    DefaultTTL,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	SessionID string
	Status    string
	FilePath  string
}

// StageResult records every modified file of a dry-run transform as a
// pending stage under one new session.
func (m *Manager) StageResult(ctx context.Context, root string, op core.TransformOp, result *core.FileTransformResult) (*models.Session, []models.Stage, error) {
	where, err := marshalJSON(op.Where)
	if err != nil {
		return nil, nil, err
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		Pattern:     op.Pattern,
		Replacement: op.Replacement,
		Root:        root,
	}
	var stages []models.Stage
	for _, d := range result.Files {
		if !d.Modified || d.Error != "" {
			continue
		}
		captures, err := captureList(d.Matches)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, models.Stage{
			ID:          uuid.NewString(),
			SessionID:   session.ID,
			Language:    d.Language,
			Pattern:     op.Pattern,
			Replacement: op.Replacement,
			Predicates:  where,
			FilePath:    d.FilePath,
			MatchCount:  d.MatchCount,
			Original:    d.Original,
			Modified:    d.Result,
			Diff:        d.Diff,
			Captures:    captures,
			BaseDigest:  core.Digest(d.Original),
			AfterDigest: core.Digest(d.Result),
			Status:      models.StatusPending,
			ExpiresAt:   m.now().Add(m.ttl),
		})
	}
	session.StagesCount = len(stages)

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if len(stages) == 0 {
			return nil
		}
		if err := tx.Create(&stages).Error; err != nil {
			return fmt.Errorf("create stages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.log.Info("stages created", "session", session.ID, "stages", len(stages))
	return session, stages, nil
}

// Get returns a stage by ID. A unique ID prefix is accepted.
func (m *Manager) Get(ctx context.Context, id string) (*models.Stage, error) {
	return m.find(m.db.WithContext(ctx), id)
}

func (m *Manager) find(db *gorm.DB, id string) (*models.Stage, error) {
	var stage models.Stage
	err := db.First(&stage, "id = ?", id).Error
	if err == nil {
		return &stage, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var candidates []models.Stage
	if err := db.Where("id LIKE ?", id+"%").Limit(2).Find(&candidates).Error; err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 1:
		return &candidates[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return nil, fmt.Errorf("stage prefix %s is ambiguous", id)
	}
}

// List returns stages matching f, newest first.
func (m *Manager) List(ctx context.Context, f Filter) ([]models.Stage, error) {
	q := m.db.WithContext(ctx).Model(&models.Stage{})
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FilePath != "" {
		q = q.Where("file_path = ?", f.FilePath)
	}
	var stages []models.Stage
	err := q.Order("created_at DESC").Order("file_path").Find(&stages).Error
	return stages, err
}

// Apply writes a pending stage to its file. The file must still hash to
// the stage's base digest; an expired stage is marked expired and refused.
func (m *Manager) Apply(ctx context.Context, id, appliedBy string) (*models.Apply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stage, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, stage.ID, stage.Status)
	}
	if stage.Expired(m.now()) {
		if err := m.setStatus(ctx, stage.ID, models.StatusExpired); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrExpired, stage.ID)
	}

	if err := m.writer.WriteIfDigest(stage.FilePath, stage.Modified, stage.BaseDigest); err != nil {
		return nil, err
	}

	apply := &models.Apply{
		ID:          uuid.NewString(),
		StageID:     stage.ID,
		BaseDigest:  stage.BaseDigest,
		AfterDigest: stage.AfterDigest,
		AppliedBy:   appliedBy,
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := m.now()
		res := tx.Model(&models.Stage{}).
			Where("id = ? AND status = ?", stage.ID, models.StatusPending).
			Updates(map[string]any{"status": models.StatusApplied, "applied_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", ErrNotPending, stage.ID)
		}
		if err := tx.Omit("Stage").Create(apply).Error; err != nil {
			return fmt.Errorf("create apply record: %w", err)
		}
		if stage.SessionID != "" {
			return tx.Model(&models.Session{}).
				Where("id = ?", stage.SessionID).
				Update("applies_count", gorm.Expr("applies_count + ?", 1)).Error
		}
		return nil
	})
	if err != nil {
		if restoreErr := m.writer.WriteIfDigest(stage.FilePath, stage.Original, stage.AfterDigest); restoreErr != nil {
			m.log.Error("restore after failed apply", "stage", stage.ID, "file", stage.FilePath, "error", restoreErr)
		}
		return nil, err
	}

	m.log.Info("stage applied", "stage", stage.ID, "file", stage.FilePath)
	return apply, nil
}

// ApplyAll applies every pending stage of a session, or of all sessions
// when sessionID is empty. Failures do not stop the remaining stages and
// are returned joined.
func (m *Manager) ApplyAll(ctx context.Context, sessionID, appliedBy string) ([]models.Apply, error) {
	stages, err := m.List(ctx, Filter{SessionID: sessionID, Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	var (
		applies []models.Apply
		errs    []error
	)
	for _, s := range stages {
		a, err := m.Apply(ctx, s.ID, appliedBy)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.FilePath, err))
			continue
		}
		applies = append(applies, *a)
	}
	return applies, errors.Join(errs...)
}

// Drop deletes a stage that has not been applied.
func (m *Manager) Drop(ctx context.Context, id string) error {
	stage, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if stage.Status == models.StatusApplied {
		return fmt.Errorf("%w: %s is applied", ErrNotPending, stage.ID)
	}
	return m.db.WithContext(ctx).Delete(&models.Stage{}, "id = ?", stage.ID).Error
}

// Cleanup marks pending stages past their expiry as expired and returns
// how many were marked.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	res := m.db.WithContext(ctx).Model(&models.Stage{}).
		Where("status = ? AND expires_at < ?", models.StatusPending, m.now()).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		m.log.Info("stages expired", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// Sessions returns sessions newest first.
func (m *Manager) Sessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := m.db.WithContext(ctx).Order("started_at DESC").Find(&sessions).Error
	return sessions, err
}

func (m *Manager) setStatus(ctx context.Context, id, status string) error {
	return m.db.WithContext(ctx).Model(&models.Stage{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// captureList keeps the captured text of every match, node and list
// captures alike, lists joined with ", ".
func captureList(matches []core.Match) (datatypes.JSON, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, 0, len(matches))
	for _, m := range matches {
		env := make(map[string]string, len(m.Captures)+len(m.Lists))
		for name, text := range m.Captures {
			env[name] = text
		}
		for name, items := range m.Lists {
			env[name] = strings.Join(items, ", ")
		}
		out = append(out, env)
	}
	return marshalJSON(out)
}

func marshalJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return datatypes.JSON(data), nil
}
