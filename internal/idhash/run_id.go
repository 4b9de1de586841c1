package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy_id|instrument|start_ms|end_ms|fingerprint)
// where fingerprint encodes the run configuration. Identical inputs always
// produce the same run_id, so re-running a simulation is idempotent.
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	strategyID string,
	instrument string,
	startMs int64,
	endMs int64,
	fingerprint string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%s",
		strategyID,
		instrument,
		startMs,
		endMs,
		fingerprint,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
