package state

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "scrobsync"
	dbFileName   = "scrobsync.db"
	lockFileName = "scrobsync.lock"
)

// dbOptions make a connection wait for another process's write to finish
// instead of failing with SQLITE_BUSY.
var dbOptions = url.Values{
	"_pragma": {
		"busy_timeout(30000)",
		"journal_mode(WAL)",
	},
}

// Manager owns the SQLite database holding the snapshot cache, the history
// mirror and the Last.fm session.
type Manager struct {
	db *sql.DB
}

// Open opens the database at its XDG data location, creating it if needed.
func Open() (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	return OpenPath(dbPath)
}

// OpenPath opens the database at path. ":memory:" is accepted.
func OpenPath(path string) (*Manager, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// Writers are serialized by the sync pass; one connection also keeps
	// in-memory databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

// Path returns where Open places the database.
func Path() (string, error) {
	return getDBPath()
}

// LockPath returns the lock file guarding sync passes over the database.
func LockPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, lockFileName))
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("%s?%s", path, dbOptions.Encode())
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
