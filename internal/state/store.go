// Package state persists versioned per-session checkpoints of a cognitive
// core in SQLite, with an active pointer per session and rollback.
package state

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	channels      BLOB NOT NULL,
	last_update   TEXT NOT NULL,
	memory_json   TEXT NOT NULL,
	summary_json  TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES checkpoints(version_id)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, created_at);

CREATE TABLE IF NOT EXISTS active_checkpoint (
	session_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES checkpoints(version_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id     TEXT NOT NULL UNIQUE,
	session_id      TEXT NOT NULL,
	version_id      TEXT,
	task            TEXT NOT NULL,
	approach        TEXT NOT NULL,
	confidence      REAL NOT NULL,
	tone            TEXT NOT NULL,
	feedback        TEXT,
	factors_json    TEXT,
	parameters_json TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	task            TEXT NOT NULL,
	success         INTEGER NOT NULL,
	insight         TEXT,
	reflection_json TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
`

// #endregion schema

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store manages versioned checkpoints in SQLite. The same database also
// carries the decision log and the journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the decision log and the journal.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region commit
// Commit inserts a version and moves the session's active pointer to it
// atomically.
func (s *Store) Commit(rec CheckpointRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent any
	if rec.ParentID != "" {
		parent = rec.ParentID
	}
	var summary any
	if rec.SummaryJSON != "" {
		summary = rec.SummaryJSON
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (version_id, session_id, parent_id, channels, last_update, memory_json, summary_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.SessionID, parent, encodeChannels(rec.Channels),
		rec.LastUpdate.UTC().Format(timeLayout), rec.MemoryJSON, summary,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_checkpoint (session_id, version_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.SessionID, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveCore checkpoints a core as a child of the session's active version and
// returns the new version id.
func (s *Store) SaveCore(sessionID string, cp cognitive.Checkpoint, summary *cognitive.Summary) (string, error) {
	parent := ""
	if cur, err := s.Current(sessionID); err == nil {
		parent = cur.VersionID
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	rec, err := NewRecord(uuid.New().String(), sessionID, parent, cp, summary, s.now())
	if err != nil {
		return "", err
	}
	if err := s.Commit(rec); err != nil {
		return "", err
	}
	return rec.VersionID, nil
}

// LoadCore returns the active checkpoint of a session. found is false when
// the session has never been saved.
func (s *Store) LoadCore(sessionID string) (cp cognitive.Checkpoint, found bool, err error) {
	rec, err := s.Current(sessionID)
	if errors.Is(err, ErrNotFound) {
		return cognitive.Checkpoint{}, false, nil
	}
	if err != nil {
		return cognitive.Checkpoint{}, false, err
	}
	cp, err = rec.Core()
	if err != nil {
		return cognitive.Checkpoint{}, false, err
	}
	return cp, true, nil
}

// #endregion commit

// #region read
const selectColumns = `SELECT version_id, session_id, parent_id, channels, last_update, memory_json, summary_json, created_at FROM checkpoints`

// Current reads the active version of a session.
func (s *Store) Current(sessionID string) (CheckpointRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_checkpoint WHERE session_id = ?`, sessionID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return CheckpointRecord{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.Version(versionID)
}

// Version retrieves a specific version by id.
func (s *Store) Version(id string) (CheckpointRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(selectColumns+` WHERE version_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CheckpointRecord{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// List returns the newest versions of a session, or of every session when
// sessionID is empty.
func (s *Store) List(sessionID string, limit int) ([]CheckpointRecord, error) {
	query := selectColumns + ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args := []any{limit}
	if sessionID != "" {
		query = selectColumns + ` WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
		args = []any{sessionID, limit}
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var records []CheckpointRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Sessions lists every session with an active checkpoint.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(
		`SELECT a.session_id, a.version_id, c.created_at,
		        (SELECT COUNT(*) FROM checkpoints WHERE session_id = a.session_id)
		 FROM active_checkpoint a JOIN checkpoints c ON c.version_id = a.version_id
		 ORDER BY c.created_at DESC, a.session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created string
		if err := rows.Scan(&info.SessionID, &info.VersionID, &created, &info.Versions); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (CheckpointRecord, error) {
	var rec CheckpointRecord
	var parentID, summary sql.NullString
	var blob []byte
	var lastUpdate, created string

	if err := row.Scan(&rec.VersionID, &rec.SessionID, &parentID, &blob, &lastUpdate,
		&rec.MemoryJSON, &summary, &created); err != nil {
		return CheckpointRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.SummaryJSON = summary.String
	rec.Channels = decodeChannels(blob)
	rec.LastUpdate, _ = time.Parse(timeLayout, lastUpdate)
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	return rec, nil
}

// #endregion read

// #region rollback
// Rollback points the session at a previous version of its own.
func (s *Store) Rollback(sessionID, targetVersionID string) error {
	var owner string
	err := s.db.QueryRow(
		`SELECT session_id FROM checkpoints WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s: %w", targetVersionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if owner != sessionID {
		return fmt.Errorf("version %s belongs to session %s, not %s", targetVersionID, owner, sessionID)
	}

	_, err = s.db.Exec(`UPDATE active_checkpoint SET version_id = ? WHERE session_id = ?`, targetVersionID, sessionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region channel-encoding
func encodeChannels(v [emotion.NumChannels]float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// decodeChannels tolerates short blobs; missing channels decode as zero.
func decodeChannels(b []byte) [emotion.NumChannels]float64 {
	var v [emotion.NumChannels]float64
	for i := range v {
		if i*8+8 <= len(b) {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	}
	return v
}

// #endregion channel-encoding
