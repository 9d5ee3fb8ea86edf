package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// SQLite stores sessions in a local sqlite file. Writers from separate
// processes serialize on a file lock.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLite(path, lockPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create session lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open session sqlite: %w", err)
	}

	// Schema setup races with other openers of the same file.
	lock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("lock session store for init: %w", err)
	}
	if !locked {
		_ = db.Close()
		return nil, fmt.Errorf("lock session store for init: timeout acquiring lock")
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS sessions (key TEXT PRIMARY KEY, value BLOB NOT NULL, updated_at INTEGER NOT NULL);"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &SQLite{db: db, lock: lock}, nil
}

// sqliteDSN applies the pragmas to every pooled connection. busy_timeout
// goes first so the WAL switch waits on a busy file.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context, key string) (UserSession, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM sessions WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSession{}, nil
		}
		return UserSession{}, fmt.Errorf("session read: %w", err)
	}
	return decode(value)
}

func (s *SQLite) Save(ctx context.Context, key string, sess UserSession) error {
	value, err := encode(sess)
	if err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock session store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock session store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}
