// Package localstate keeps demo-mode state in a local SQLite key-value
// table: the persisted session and the task list of every local user.
package localstate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Fixed keys of the stored values.
const (
	AuthKey  = "auth-storage"
	TasksKey = "taskManager_tasks"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "upahead.db"

// Entry is one stored value.
type Entry struct {
	Key       string `gorm:"column:name;primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "local_storage" }

// Open opens the SQLite database at dsn and migrates it. Log lines from
// gorm go to log at warn level.
func Open(dsn string, log *slog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultPath
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	if isMemory(dsn) {
		// Every connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open local state: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate local state: %w", err)
	}

	return db, nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if isMemory(dsn) {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create local state dir %q: %w", dir, err)
	}
	return nil
}
