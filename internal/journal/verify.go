package journal

import "fmt"

// VerificationResult reports the outcome of a chain walk.
type VerificationResult struct {
	Valid        bool
	TotalEntries int
	ErrorMessage string
	FailedAtSeq  int64
}

// VerifyChain re-derives every entry hash, checks chain linkage, and
// verifies every signature against the journal's public key. Any
// retroactive edit to a stored entry breaks exactly here.
func (j *Journal) VerifyChain() (*VerificationResult, error) {
	return VerifyDB(j.db)
}

// VerifyDB runs chain verification against a store directly. Usable by
// external auditors holding only the database file; the verification
// key is read from the journal meta.
func VerifyDB(db *DB) (*VerificationResult, error) {
	id, publicKey, genesisHash, ok, err := db.Meta()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &VerificationResult{Valid: false, ErrorMessage: "no journal meta found"}, nil
	}

	entries, err := db.Entries(id)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	result := &VerificationResult{Valid: true, TotalEntries: len(entries), FailedAtSeq: -1}
	if len(entries) == 0 {
		result.Valid = false
		result.ErrorMessage = "journal has no entries"
		return result, nil
	}

	for i := range entries {
		entry := &entries[i]

		if i == 0 {
			if entry.PrevHash != GenesisHash {
				return fail(result, entry, "genesis prev_hash is not the zero hash"), nil
			}
			if entry.CurrHash != genesisHash {
				return fail(result, entry, "genesis hash does not match journal meta"), nil
			}
		} else if entry.PrevHash != entries[i-1].CurrHash {
			return fail(result, entry, "hash chain broken: prev_hash mismatch"), nil
		}

		calculated, err := chainHash(entry.PrevHash, hashPayload(entry))
		if err != nil {
			return nil, fmt.Errorf("recomputing hash at seq %d: %w", entry.Seq, err)
		}
		if calculated != entry.CurrHash {
			return fail(result, entry, "entry hash mismatch"), nil
		}
		if !VerifyWithKey(publicKey, entry.CurrHash, entry.Signature) {
			return fail(result, entry, "signature verification failed"), nil
		}
	}

	return result, nil
}

func fail(result *VerificationResult, entry *Entry, msg string) *VerificationResult {
	result.Valid = false
	result.ErrorMessage = fmt.Sprintf("seq %d: %s", entry.Seq, msg)
	result.FailedAtSeq = int64(entry.Seq)
	return result
}
