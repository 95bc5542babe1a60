package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey derives the storage-key prefix for a user. Raw user ids (which
// may be emails or "guest:<id>" strings) never appear in object keys.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
