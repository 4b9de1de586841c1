package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id within a run.
// Formula: SHA256(run_id|entry_time_ms|index)
// where index is the zero-based position of the trade in the run.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID string, entryTimeMs int64, index int) string {
	data := fmt.Sprintf("%s|%d|%d", runID, entryTimeMs, index)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
