// Package fingerprint derives the content-addressed identity of a pipeline
// step from its source surface, product parameters, and the fingerprints of
// its direct dependencies.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
)

// Fingerprint is the hex form of a blake3 digest. Identical inputs always
// produce identical fingerprints; it is the cache key and the unit of
// at-most-one-concurrent-build.
type Fingerprint string

// Compute hashes a step's identity. The encoding length-prefixes every field
// so adjacent values can never alias, and sorts the dependency fingerprints
// so identity is independent of dependency declaration order.
func Compute(sourceID string, spec product.Spec, deps []Fingerprint) Fingerprint {
	h := blake3.New()

	writeField := func(data []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(data)))
		h.Write(n[:])
		h.Write(data)
	}

	writeField([]byte(sourceID))
	writeField([]byte(spec.Kind.String()))

	params := spec.CanonicalParams()
	writeField([]byte{byte(len(params))})
	for _, kv := range params {
		writeField([]byte(kv))
	}

	sorted := make([]string, len(deps))
	for i, d := range deps {
		sorted[i] = string(d)
	}
	sort.Strings(sorted)
	writeField([]byte{byte(len(sorted))})
	for _, d := range sorted {
		writeField([]byte(d))
	}

	sum := h.Sum(nil)
	return Fingerprint(hex.EncodeToString(sum))
}

// Valid reports whether s looks like a fingerprint this package produced.
// Used to reject malformed artifact lookups at the API boundary.
func Valid(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
