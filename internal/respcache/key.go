package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// Key derives the cache key for a request from its full identity: the url
// and all query parameters. Parameters are folded in sorted order, so two
// calls with the same url and params always produce the same key, while any
// differing parameter changes the digest.
func Key(url string, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(url))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(params[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}
