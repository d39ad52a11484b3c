// Package worldstore is the driver's auxiliary operational database: it
// is NOT the object persistence format (internal/persist owns that per
// spec §6). It backs driver-internal bookkeeping that benefits from a
// real store: blueprint mtimes for fast reload_changed bootstrapping, a
// connection/session log, a command audit log of telnet commands, and
// per-file --test run results.
package worldstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the world-index sqlite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the world-index database at path, applying the
// same WAL/synchronous/busy-timeout pragmas the teacher's engine used,
// and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open worldstore: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping worldstore: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init worldstore schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS blueprint_mtimes (
		path TEXT PRIMARY KEY,
		mtime_unix INTEGER NOT NULL,
		last_restore_path TEXT
	);

	CREATE TABLE IF NOT EXISTS connection_log (
		conn_id TEXT PRIMARY KEY,
		remote_addr TEXT NOT NULL,
		player_id TEXT,
		connected_at INTEGER DEFAULT (strftime('%s', 'now')),
		disconnected_at INTEGER,
		linkdead INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS command_audit (
		audit_id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id TEXT NOT NULL,
		verb TEXT NOT NULL,
		args TEXT,
		ok INTEGER NOT NULL,
		detail TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS test_runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		dir TEXT NOT NULL,
		file TEXT NOT NULL,
		passed INTEGER NOT NULL,
		assertions INTEGER NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BlueprintMtime returns the last recorded compile-time mtime for path,
// or the zero time if never recorded.
func (s *Store) BlueprintMtime(path string) (time.Time, bool, error) {
	var unix int64
	err := s.db.QueryRow(`SELECT mtime_unix FROM blueprint_mtimes WHERE path = ?`, path).Scan(&unix)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0), true, nil
}

// RecordBlueprintMtime upserts the recorded compile-time mtime for path.
func (s *Store) RecordBlueprintMtime(path string, mtime time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO blueprint_mtimes (path, mtime_unix) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime_unix = excluded.mtime_unix
	`, path, mtime.Unix())
	return err
}

// RecordRestorePath records the last save path successfully restored for
// a blueprint path, for crash-recovery diagnostics only — restore_object
// itself never reads this back (spec §6's restore always takes an
// explicit path).
func (s *Store) RecordRestorePath(blueprintPath, savePath string) error {
	_, err := s.db.Exec(`
		INSERT INTO blueprint_mtimes (path, mtime_unix, last_restore_path) VALUES (?, 0, ?)
		ON CONFLICT(path) DO UPDATE SET last_restore_path = excluded.last_restore_path
	`, blueprintPath, savePath)
	return err
}

// AllBlueprintPaths returns every path with a recorded mtime, used by
// reload_changed to also check blueprints recorded by an earlier run but
// not loaded in this one.
func (s *Store) AllBlueprintPaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM blueprint_mtimes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LogConnect records a new connection.
func (s *Store) LogConnect(connID, remoteAddr string) error {
	_, err := s.db.Exec(`INSERT INTO connection_log (conn_id, remote_addr) VALUES (?, ?)`, connID, remoteAddr)
	return err
}

// LogBindPlayer records the player object id once login binds the
// connection to a player object.
func (s *Store) LogBindPlayer(connID, playerID string) error {
	_, err := s.db.Exec(`UPDATE connection_log SET player_id = ? WHERE conn_id = ?`, playerID, connID)
	return err
}

// LogDisconnect marks a connection closed, optionally as a linkdead
// transition rather than a final close.
func (s *Store) LogDisconnect(connID string, linkdead bool) error {
	ld := 0
	if linkdead {
		ld = 1
	}
	_, err := s.db.Exec(`UPDATE connection_log SET disconnected_at = strftime('%s','now'), linkdead = ? WHERE conn_id = ?`, ld, connID)
	return err
}

// LogCommand records one command dispatched by the telnet front-end in
// the command audit log.
func (s *Store) LogCommand(actorID, verb, args string, ok bool, detail string) error {
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO command_audit (actor_id, verb, args, ok, detail) VALUES (?, ?, ?, ?, ?)
	`, actorID, verb, args, okInt, detail)
	return err
}

// RecordTestRun stores one --test harness file result for diffable
// repeated runs.
func (s *Store) RecordTestRun(dir, file string, passed bool, assertions int) error {
	p := 0
	if passed {
		p = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO test_runs (dir, file, passed, assertions) VALUES (?, ?, ?, ?)
	`, dir, file, p, assertions)
	return err
}
