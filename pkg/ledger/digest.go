package ledger

import (
	"crypto/md5" // #nosec G501 -- content fingerprint for cache busting, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Digest names the algorithm used to fingerprint file content.
type Digest string

const (
	// DigestMD5 matches ledgers written by earlier releases.
	DigestMD5    Digest = "md5"
	DigestSHA256 Digest = "sha256"
	DigestBLAKE3 Digest = "blake3"
)

// ParseDigest validates a digest name. The empty string selects md5.
func ParseDigest(s string) (Digest, error) {
	switch Digest(strings.ToLower(strings.TrimSpace(s))) {
	case "", DigestMD5:
		return DigestMD5, nil
	case DigestSHA256:
		return DigestSHA256, nil
	case DigestBLAKE3:
		return DigestBLAKE3, nil
	default:
		return "", fmt.Errorf("unknown digest %q (want md5, sha256 or blake3)", s)
	}
}

// HashBytes returns the first HashLength hex characters of the digest of data.
func HashBytes(d Digest, data []byte) string {
	var sum []byte
	switch d {
	case DigestSHA256:
		s := sha256.Sum256(data)
		sum = s[:]
	case DigestBLAKE3:
		s := blake3.Sum256(data)
		sum = s[:]
	default:
		s := md5.Sum(data) // #nosec G401
		sum = s[:]
	}
	return hex.EncodeToString(sum)[:HashLength]
}
