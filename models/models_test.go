package models

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Stage{}, &Apply{}, &Session{}))
	return db
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "stages", Stage{}.TableName())
	assert.Equal(t, "applies", Apply{}.TableName())
	assert.Equal(t, "sessions", Session{}.TableName())
}

func TestStageRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	stage := Stage{
		ID:          "stg-1",
		SessionID:   "ses-1",
		Language:    "javascript",
		Pattern:     "foo($a)",
		Replacement: "bar($a)",
		Predicates:  datatypes.JSON(`{"$a":"^\\d+$"}`),
		FilePath:    "src/app.js",
		MatchCount:  2,
		Original:    "foo(1); foo(2);",
		Modified:    "bar(1); bar(2);",
		Captures:    datatypes.JSON(`[{"$a":"1"},{"$a":"2"}]`),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&stage).Error)

	var loaded Stage
	require.NoError(t, db.First(&loaded, "id = ?", "stg-1").Error)
	assert.Equal(t, StatusPending, loaded.Status)
	assert.Equal(t, "foo($a)", loaded.Pattern)
	assert.False(t, loaded.CreatedAt.IsZero())

	captures, err := loaded.CaptureList()
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"$a": "1"}, {"$a": "2"}}, captures)

	where, err := loaded.WhereClauses()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"$a": `^\d+$`}, where)
}

func TestStageApplyRelation(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&Stage{ID: "stg-1", Language: "javascript", Pattern: "x"}).Error)
	require.NoError(t, db.Create(&Apply{ID: "apl-1", StageID: "stg-1", AppliedBy: "cli"}).Error)

	var stage Stage
	require.NoError(t, db.Preload("Apply").First(&stage, "id = ?", "stg-1").Error)
	require.NotNil(t, stage.Apply)
	assert.Equal(t, "apl-1", stage.Apply.ID)

	err := db.Create(&Apply{ID: "apl-2", StageID: "stg-1"}).Error
	assert.Error(t, err, "a stage is applied at most once")
}

func TestStageExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"no expiry", time.Time{}, false},
		{"future", now.Add(time.Minute), false},
		{"past", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stage{ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, s.Expired(now))
		})
	}
}

func TestStageDecodeEmptyAndInvalid(t *testing.T) {
	var s Stage
	captures, err := s.CaptureList()
	assert.NoError(t, err)
	assert.Nil(t, captures)

	s.Captures = datatypes.JSON(`{not json`)
	_, err = s.CaptureList()
	assert.Error(t, err)
}
