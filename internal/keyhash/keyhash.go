// Package keyhash maps logical cache keys to on-disk names.
//
// Keys never appear in filesystem paths directly; every disk reference
// goes through a fixed-width digest. The digest must be stable across
// process restarts so that an index rebuilt from a directory scan
// agrees with fresh writes.
package keyhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Sum returns the 32-hex-char digest of key: the first 16 bytes of
// SHA-256, hex encoded.
func Sum(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// Shard maps a digest to a shard index in [0, n): the first 8 hex chars
// read as an unsigned 32-bit integer, modulo n.
func Shard(hash string, n int) int {
	if n <= 1 || len(hash) < 8 {
		return 0
	}
	u, err := strconv.ParseUint(hash[:8], 16, 32)
	if err != nil {
		return 0
	}
	return int(u % uint64(n))
}

// Dir renders a shard index as its directory name: two hex chars with a
// leading zero.
func Dir(idx int) string {
	return fmt.Sprintf("%02x", idx)
}
