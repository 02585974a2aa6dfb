package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/termfx/astmorph/models"
)

// Config selects the staging store. A DSN starting with libsql://,
// http:// or https:// is a remote libSQL database, anything else a local
// SQLite file or ":memory:".
type Config struct {
	DSN       string
	AuthToken string // remote databases only
	Debug     bool   // log every statement
}

// Connect opens the store and runs migrations.
func Connect(cfg Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if IsRemote(cfg.DSN) {
		var (
			connector driver.Connector
			err       error
		)
		if cfg.AuthToken != "" {
			connector, err = libsql.NewConnector(cfg.DSN, libsql.WithAuthToken(cfg.AuthToken))
		} else {
			connector, err = libsql.NewConnector(cfg.DSN)
		}
		if err != nil {
			return nil, fmt.Errorf("create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = gormsqlite.New(gormsqlite.Config{DriverName: "libsql", Conn: conn, DSN: cfg.DSN})
	} else {
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("connect: %w", err)
	}

	if !IsRemote(cfg.DSN) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if cfg.DSN == ":memory:" {
			// each connection to :memory: opens a fresh database
			sqlDB.SetMaxOpenConns(1)
		}
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// IsRemote reports whether dsn names a libSQL server.
func IsRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://", "wss://", "ws://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.Stage{},
		&models.Apply{},
	)
}
