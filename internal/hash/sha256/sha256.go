// Package sha256 derives content digests and HTTP entity tags for rendered
// feed documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag built from the first 128 bits of the digest.
func ETag(data []byte) string {
	return `"` + Sum(data)[:32] + `"`
}

// MatchesIfNoneMatch reports whether an If-None-Match header value selects
// etag. Weak comparison is used, as RFC 9110 requires for If-None-Match.
func MatchesIfNoneMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
