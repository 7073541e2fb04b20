// Package sqlite provides the SQLite-backed coordinator store.
//
// All phase-driving writes are conditional statements whose WHERE clause
// re-checks the expected phase and host identity, so racing callers settle
// at the database rather than in client code.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage/sqlite/migrations"
	sqlitemigrate "github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence implementing storage.Store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a coordinator SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// A single writer avoids SQLITE_BUSY churn between racing conditional
	// writes; reads still run concurrently under WAL.
	sqlDB.SetMaxOpenConns(1)

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// toNullMillis maps optional domain times to sql.NullInt64 for nullable DB columns.
func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// fromNullMillis maps nullable SQL timestamps back into optional domain time values.
func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func visibilityToString(value domain.Visibility) string {
	if value == domain.VisibilityPrivate {
		return "private"
	}
	return "public"
}

func visibilityFromString(value string) domain.Visibility {
	if value == "private" {
		return domain.VisibilityPrivate
	}
	return domain.VisibilityPublic
}

// classifyTransitionFailure explains a zero-row conditional phase write.
// The follow-up read only runs on the failure path, so the happy path stays
// a single statement.
func (s *Store) classifyTransitionFailure(ctx context.Context, sessionID, hostUserID string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	if !sess.Active {
		return storage.ErrSessionInactive
	}
	if hostUserID != "" && sess.HostUserID != hostUserID {
		return storage.ErrNotHost
	}
	return storage.ErrWrongPhase
}
