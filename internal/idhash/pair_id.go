package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePairID computes a deterministic bond pair id using SHA256.
// Formula: SHA256(kalshi_id|polymarket_id)
// Returns hex-encoded hash (64 characters).
func ComputePairID(kalshiID, polymarketID string) string {
	data := fmt.Sprintf("%s|%s", kalshiID, polymarketID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
