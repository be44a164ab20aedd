package intel

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	scam_detected INTEGER NOT NULL DEFAULT 0,
	total_messages INTEGER NOT NULL DEFAULT 0,
	intelligence TEXT NOT NULL DEFAULT '{}',
	tactics TEXT NOT NULL DEFAULT '[]',
	callback_state TEXT NOT NULL DEFAULT 'pending',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// SQLiteStore is the durable store backing. The merge read-modify-write is
// serialized by a process-wide mutex on top of WAL mode; the pending→sent
// transition additionally relies on a conditional UPDATE so it stays
// atomic even across processes sharing the file.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetOrCreate(sessionID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok, err := s.load(sessionID)
	if err != nil {
		return Record{}, err
	}
	if ok {
		return rec, nil
	}
	rec = Record{SessionID: sessionID, Callback: CallbackPending}
	if err := s.save(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) Merge(sessionID string, d Delta) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok, err := s.load(sessionID)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		rec = Record{SessionID: sessionID, Callback: CallbackPending}
	}
	rec.apply(d)
	if err := s.save(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) TrySend(sessionID string) (bool, error) {
	return s.transition(sessionID, CallbackSent)
}

func (s *SQLiteStore) Suppress(sessionID string) (bool, error) {
	return s.transition(sessionID, CallbackSuppressed)
}

func (s *SQLiteStore) transition(sessionID string, to CallbackState) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE sessions SET callback_state = ?, updated_at = ? WHERE session_id = ? AND callback_state = 'pending'`,
		string(to), time.Now().UnixMilli(), sessionID)
	if err != nil {
		return false, fmt.Errorf("transitioning session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Distinguish "already terminal" from "never seen".
		var state string
		err := s.db.QueryRow(`SELECT callback_state FROM sessions WHERE session_id = ?`, sessionID).Scan(&state)
		if err == sql.ErrNoRows {
			return false, ErrUnknownSession
		}
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Get(sessionID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(sessionID)
}

func (s *SQLiteStore) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT session_id, scam_detected, total_messages, intelligence, tactics, callback_state FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) load(sessionID string) (Record, bool, error) {
	row := s.db.QueryRow(
		`SELECT session_id, scam_detected, total_messages, intelligence, tactics, callback_state FROM sessions WHERE session_id = ?`,
		sessionID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) save(rec *Record) error {
	intelJSON, err := json.Marshal(rec.Intelligence)
	if err != nil {
		return err
	}
	tactics := rec.Tactics
	if tactics == nil {
		tactics = []string{}
	}
	tacticsJSON, err := json.Marshal(tactics)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (session_id, scam_detected, total_messages, intelligence, tactics, callback_state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			scam_detected = excluded.scam_detected,
			total_messages = excluded.total_messages,
			intelligence = excluded.intelligence,
			tactics = excluded.tactics,
			updated_at = excluded.updated_at`,
		rec.SessionID, boolInt(rec.ScamDetected), rec.TotalMessages,
		string(intelJSON), string(tacticsJSON), string(rec.Callback), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving session %s: %w", rec.SessionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var scam int
	var intelJSON, tacticsJSON, state string
	if err := row.Scan(&rec.SessionID, &scam, &rec.TotalMessages, &intelJSON, &tacticsJSON, &state); err != nil {
		return Record{}, err
	}
	rec.ScamDetected = scam != 0
	rec.Callback = CallbackState(state)
	if err := json.Unmarshal([]byte(intelJSON), &rec.Intelligence); err != nil {
		return Record{}, fmt.Errorf("decoding intelligence for %s: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal([]byte(tacticsJSON), &rec.Tactics); err != nil {
		return Record{}, fmt.Errorf("decoding tactics for %s: %w", rec.SessionID, err)
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
