package state

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

// migrations[v] upgrades a database at version v-1 to v. Fresh databases
// are created at currentSchemaVersion and skip them.
var migrations = map[int]string{
	// history permalink
	2: `ALTER TABLE history_mirror ADD COLUMN url TEXT`,
}

func initSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS snapshot_cache (
			track_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			artwork BLOB,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played_at INTEGER,
			last_synced_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshot_last_synced ON snapshot_cache(last_synced_at);

		CREATE TABLE IF NOT EXISTS history_mirror (
			scrobble_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			scrobbled_at INTEGER NOT NULL,
			image_url TEXT,
			url TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_history_scrobbled_at ON history_mirror(scrobbled_at DESC);

		CREATE TABLE IF NOT EXISTS lastfm_session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT NOT NULL,
			session_key TEXT NOT NULL,
			linked_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sync_meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	if version == 0 {
		return setSchemaVersion(db, currentSchemaVersion)
	}
	for v := version + 1; v <= currentSchemaVersion; v++ {
		if stmt, ok := migrations[v]; ok {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migrate schema to version %d: %w", v, err)
			}
		}
		if err := setSchemaVersion(db, v); err != nil {
			return err
		}
	}
	return nil
}

// schemaVersion returns 0 for a database that has never been initialized.
func schemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'
	`).Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}

	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

func setSchemaVersion(db *sql.DB, v int) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, v)
	return err
}
