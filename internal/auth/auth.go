package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a session upload token for at-rest comparison; the raw
// token is only ever returned once, at session creation.
func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}
