package models

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

var (
	db *sql.DB

	// writeMu serializes every read-compare-write against the store so that
	// two devices pushing the same note resolve strictly by timestamp.
	writeMu sync.Mutex

	// nowFunc is the hub clock. Tests replace it through SetClock.
	nowFunc = time.Now
)

// InitDB opens (or creates) the DuckDB file at path and runs migrations.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return serr.Wrap(err, "failed to create database directory")
		}
	}

	handle, err := sql.Open("duckdb", path)
	if err != nil {
		return serr.Wrap(err, "failed to open database")
	}

	if err := migrateDB(handle); err != nil {
		_ = handle.Close()
		return serr.Wrap(err, "failed to migrate database")
	}

	db = handle
	logger.Info("Database initialized", "path", path)
	return nil
}

// InitTestDB is InitDB for tests: the caller owns cleanup of the file.
func InitTestDB(path string) error {
	SetClock(nil)
	return InitDB(path)
}

// CloseDB closes the database connection
func CloseDB() {
	if db != nil {
		_ = db.Close()
		db = nil
	}
}

// SetClock overrides the hub clock. Passing nil restores time.Now.
func SetClock(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	nowFunc = fn
}

// serverNow returns the hub's receipt time at the store's precision.
func serverNow() time.Time {
	return normalizeTime(nowFunc())
}

// normalizeTime drops sub-microsecond precision, which DuckDB TIMESTAMP
// cannot hold, so that equality comparisons survive a round trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// laterOf returns the later of two times.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// inTx runs fn inside a transaction while holding the write lock.
func inTx(fn func(tx *sql.Tx) error) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	if db == nil {
		return serr.New("database not initialized")
	}

	tx, err := db.Begin()
	if err != nil {
		return serr.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return serr.Wrap(err, "failed to commit transaction")
	}
	return nil
}
