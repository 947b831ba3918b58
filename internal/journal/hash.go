package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ucarion/jcs"

	"github.com/slyt3/Covenant/internal/assert"
)

// GenesisHash is the prev_hash of the genesis entry: 64 zeros.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// chainHash produces the deterministic hash of an entry: the payload is
// canonicalized with RFC 8785 (JSON Canonicalization Scheme) so the
// result is identical regardless of key order or platform, then hashed
// together with the previous entry's hash.
func chainHash(prevHash string, payload interface{}) (string, error) {
	if err := assert.Check(prevHash != "", "prev_hash must be non-empty"); err != nil {
		return "", err
	}
	if err := assert.Check(payload != nil, "payload must not be nil"); err != nil {
		return "", err
	}

	// Marshal then unmarshal to normalize the structure for JCS.
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	var normalized interface{}
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		return "", fmt.Errorf("normalizing payload: %w", err)
	}

	canonical, err := jcs.Format(normalized)
	if err != nil {
		return "", fmt.Errorf("canonicalizing payload: %w", err)
	}

	hasher := sha256.New()
	hasher.Write([]byte(prevHash))
	hasher.Write([]byte(canonical))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// hashPayload builds the map that is hashed for an entry. Kept in one
// place so Append and VerifyChain cannot drift apart.
func hashPayload(e *Entry) map[string]interface{} {
	return map[string]interface{}{
		"id":         e.ID,
		"journal_id": e.JournalID,
		"seq":        e.Seq,
		"ts":         e.Timestamp,
		"event_type": e.EventType,
		"task_id":    e.TaskID,
		"actor":      e.Actor,
		"payload":    e.Payload,
	}
}
