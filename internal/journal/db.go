package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one persisted journal record: a transition event plus its
// position in the hash chain.
type Entry struct {
	ID        string
	JournalID string
	Seq       uint64
	Timestamp string // RFC3339Nano, stored verbatim so hashes recompute exactly
	EventType string
	TaskID    uint64
	Actor     string
	Payload   string // canonical JSON of the escrow event
	PrevHash  string
	CurrHash  string
	Signature string
}

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("enabling WAL mode: %v; closing database: %w", err, closeErr)
		}
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("executing schema: %v; closing database: %w", err, closeErr)
		}
		return nil, fmt.Errorf("executing schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InsertMeta records the journal identity created at genesis.
func (db *DB) InsertMeta(id, publicKey, genesisHash string) error {
	query := `INSERT INTO journal_meta (id, created_at, public_key, genesis_hash) VALUES (?, ?, ?, ?)`
	if _, err := db.conn.Exec(query, id, time.Now().UTC().Format(time.RFC3339Nano), publicKey, genesisHash); err != nil {
		return fmt.Errorf("inserting journal meta: %w", err)
	}
	return nil
}

// Meta returns the journal identity, or ok=false when the database is
// fresh and genesis has not run yet.
func (db *DB) Meta() (id, publicKey, genesisHash string, ok bool, err error) {
	query := `SELECT id, public_key, genesis_hash FROM journal_meta LIMIT 1`
	err = db.conn.QueryRow(query).Scan(&id, &publicKey, &genesisHash)
	if err == sql.ErrNoRows {
		return "", "", "", false, nil
	}
	if err != nil {
		return "", "", "", false, fmt.Errorf("querying journal meta: %w", err)
	}
	return id, publicKey, genesisHash, true, nil
}

// InsertEntry appends one entry. The UNIQUE (journal_id, seq) constraint
// rejects sequence reuse at the storage layer.
func (db *DB) InsertEntry(e *Entry) error {
	query := `
		INSERT INTO entries (
			id, journal_id, seq, ts, event_type, task_id, actor,
			payload, prev_hash, curr_hash, signature
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.Exec(query,
		e.ID, e.JournalID, e.Seq, e.Timestamp, e.EventType, e.TaskID, e.Actor,
		e.Payload, e.PrevHash, e.CurrHash, e.Signature,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// LastEntry retrieves the most recent entry's sequence and hash.
// A fresh journal reports seq -1 with an empty hash.
func (db *DB) LastEntry(journalID string) (seq int64, currHash string, err error) {
	query := `SELECT seq, curr_hash FROM entries WHERE journal_id = ? ORDER BY seq DESC LIMIT 1`
	err = db.conn.QueryRow(query, journalID).Scan(&seq, &currHash)
	if err == sql.ErrNoRows {
		return -1, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("querying last entry: %w", err)
	}
	return seq, currHash, nil
}

const selectEntry = `
	SELECT id, journal_id, seq, ts, event_type, task_id, actor,
	       payload, prev_hash, curr_hash, signature
	FROM entries
`

// Entries retrieves all entries for the journal, ordered by sequence.
func (db *DB) Entries(journalID string) ([]Entry, error) {
	rows, err := db.conn.Query(selectEntry+` WHERE journal_id = ? ORDER BY seq ASC`, journalID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesByTask retrieves the transition history of a single task,
// ordered by sequence.
func (db *DB) EntriesByTask(taskID uint64) ([]Entry, error) {
	rows, err := db.conn.Query(selectEntry+` WHERE task_id = ? ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying task entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountEntries returns the number of journal entries.
func (db *DB) CountEntries() (uint64, error) {
	var count uint64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.JournalID, &e.Seq, &e.Timestamp, &e.EventType, &e.TaskID, &e.Actor,
			&e.Payload, &e.PrevHash, &e.CurrHash, &e.Signature,
		); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}
