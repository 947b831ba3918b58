// Package journal persists escrow transition events as an append-only,
// hash-chained, Ed25519-signed record over SQLite. Each entry's hash
// covers the previous entry's hash, so any retroactive edit breaks the
// chain and is caught by VerifyChain.
package journal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slyt3/Covenant/internal/assert"
	"github.com/slyt3/Covenant/internal/escrow"
)

// Journal is an escrow.Recorder writing to the chained store. Appends
// are serialized by an internal mutex; the last sequence and hash are
// cached so a write costs a single insert.
type Journal struct {
	db        *DB
	signer    *Signer
	journalID string

	mu       sync.Mutex
	lastSeq  int64
	lastHash string
}

// Open initializes the journal at dbPath with the signing key at
// keyPath, creating the genesis entry on first use.
func Open(dbPath, keyPath string) (*Journal, error) {
	if err := assert.Check(dbPath != "", "db path must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.Check(keyPath != "", "key path must not be empty"); err != nil {
		return nil, err
	}

	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	signer, err := NewSigner(keyPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db, signer: signer}

	id, _, _, ok, err := db.Meta()
	if err != nil {
		db.Close()
		return nil, err
	}
	if !ok {
		if err := j.genesis(); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating genesis entry: %w", err)
		}
		return j, nil
	}

	j.journalID = id
	seq, hash, err := db.LastEntry(id)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := assert.Check(seq >= 0 && hash != "", "journal meta present but chain empty"); err != nil {
		db.Close()
		return nil, err
	}
	j.lastSeq = seq
	j.lastHash = hash
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// JournalID returns the journal identity assigned at genesis.
func (j *Journal) JournalID() string {
	return j.journalID
}

// PublicKey returns the hex-encoded verification key.
func (j *Journal) PublicKey() string {
	return j.signer.PublicKey()
}

// EntryCount returns the number of chained entries, genesis included.
func (j *Journal) EntryCount() (uint64, error) {
	return j.db.CountEntries()
}

// TaskHistory returns the recorded transition entries of one task.
func (j *Journal) TaskHistory(taskID uint64) ([]Entry, error) {
	return j.db.EntriesByTask(taskID)
}

// Record implements escrow.Recorder: the event is serialized, chained
// onto the previous entry, signed, and inserted.
func (j *Journal) Record(ev escrow.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		ID:        ev.ID,
		JournalID: j.journalID,
		Seq:       uint64(j.lastSeq + 1),
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		EventType: string(ev.Type),
		TaskID:    ev.TaskID,
		Actor:     ev.Actor,
		Payload:   string(payload),
		PrevHash:  j.lastHash,
	}
	return j.append(entry)
}

// genesis writes entry 0 carrying the journal identity and public key.
func (j *Journal) genesis() error {
	j.journalID = uuid.New().String()

	identity, err := json.Marshal(map[string]interface{}{
		"journal_id": j.journalID,
		"public_key": j.signer.PublicKey(),
		"version":    "1",
	})
	if err != nil {
		return fmt.Errorf("marshaling genesis payload: %w", err)
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		JournalID: j.journalID,
		Seq:       0,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: "genesis",
		TaskID:    0,
		Actor:     "system",
		Payload:   string(identity),
		PrevHash:  GenesisHash,
	}
	j.lastSeq = -1
	j.lastHash = ""
	if err := j.append(entry); err != nil {
		return err
	}
	return j.db.InsertMeta(j.journalID, j.signer.PublicKey(), entry.CurrHash)
}

// append hashes, signs, and inserts an entry whose Seq and PrevHash are
// already set, then advances the cached chain head.
func (j *Journal) append(entry *Entry) error {
	if err := assert.Check(int64(entry.Seq) == j.lastSeq+1, "sequence gap: last=%d entry=%d", j.lastSeq, entry.Seq); err != nil {
		return err
	}

	hash, err := chainHash(entry.PrevHash, hashPayload(entry))
	if err != nil {
		return fmt.Errorf("calculating hash: %w", err)
	}
	entry.CurrHash = hash
	entry.Signature = j.signer.SignHash(hash)

	if err := j.db.InsertEntry(entry); err != nil {
		return err
	}
	j.lastSeq = int64(entry.Seq)
	j.lastHash = entry.CurrHash
	return nil
}
