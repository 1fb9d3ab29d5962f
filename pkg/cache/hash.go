package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(canonicalize(parts))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// canonicalize rewrites string maps as sorted pair lists so that parameter
// order never changes the key. json.Marshal already sorts map keys, but only
// for map[string]... types at the top level; nested any-typed maps inside the
// parts slice go through here explicitly.
func canonicalize(parts []any) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		if m, ok := p.(map[string]string); ok {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([][2]string, len(keys))
			for j, k := range keys {
				pairs[j] = [2]string{k, m[k]}
			}
			out[i] = pairs
			continue
		}
		out[i] = p
	}
	return out
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
