package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// PairKey computes the canonical key for a (strategy, token) position pair.
// Matching is case-insensitive because channel messages are not consistent
// about casing.
func PairKey(strategy, token string) string {
	return fmt.Sprintf("%s|%s",
		strings.ToLower(strings.TrimSpace(strategy)),
		strings.ToLower(strings.TrimSpace(token)),
	)
}

// Shard maps a pair key onto one of n lock shards deterministically.
func Shard(key string, n int) int {
	if n <= 1 {
		return 0
	}
	hash := sha256.Sum256([]byte(key))
	return int(hash[0]) % n
}
