package rubric

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns a SHA-256 hash over a canonical serialization of the
// rubric document. encoding/json emits object keys in sorted order, so two
// documents with identical content but different key order hash identically,
// and any content change (weights, ids, patterns) changes the hash. Used to
// detect judge outputs computed against a stale rubric.
func (r *Rubric) Fingerprint() string {
	doc := r.doc
	if doc == nil {
		// Rubric was built in code; round-trip through JSON so the hash
		// matches a loaded document with the same content.
		b, err := json.Marshal(r)
		if err == nil {
			_ = json.Unmarshal(b, &doc)
		}
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		canonical = nil
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
