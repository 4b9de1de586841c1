package idhash

import (
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// shortBytes is how many leading bytes of the hash feed the short form.
const shortBytes = 8

// Short derives a compact base58 display form from a hex-encoded id.
// It encodes the first 8 decoded bytes, which is enough to avoid
// collisions in logs and report filenames while staying readable.
// Non-hex input is encoded as-is so the result is never empty.
func Short(id string) string {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) == 0 {
		return base58.Encode([]byte(id))
	}
	if len(raw) > shortBytes {
		raw = raw[:shortBytes]
	}
	return base58.Encode(raw)
}
