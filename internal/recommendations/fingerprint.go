package recommendations

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

const fingerprintDelimiter = ","

// Fingerprint digests a collection's external identifiers. Order and repeats do
// not matter; an empty collection yields the digest of the empty string.
func Fingerprint(externalIDs []int64) string {
	sorted := slices.Clone(externalIDs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	parts := make([]string, 0, len(sorted))
	for _, externalID := range sorted {
		parts = append(parts, strconv.FormatInt(externalID, 10))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintDelimiter)))
	return hex.EncodeToString(sum[:])
}
