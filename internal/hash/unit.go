// Package hash maps strings onto the unit interval with xxh3.
package hash

import (
	"strings"

	"github.com/zeebo/xxh3"
)

// separator joins the hashed parts. It is outside the id charset so
// ("ab","c") and ("a","bc") never collide.
const separator = "\x00"

// unitScale converts a 53-bit integer into a float in [0,1).
const unitScale = 1.0 / (1 << 53)

// Sum64 hashes the joined parts with the given seed.
//
// Parameters:
//   - seed: Hash seed (0 uses the unseeded xxh3 variant)
//   - parts: Strings to hash, joined with a NUL separator
//
// Returns:
//   - uint64: 64-bit xxh3 digest
func Sum64(seed uint64, parts ...string) uint64 {
	key := strings.Join(parts, separator)
	if seed == 0 {
		return xxh3.HashString(key)
	}

	return xxh3.HashStringSeed(key, seed)
}

// Unit maps the joined parts to a float64 in [0,1).
//
// The same inputs always produce the same value. The top 53 bits of the
// digest are used so the result is exactly representable.
//
// Example:
//
//	r := hash.Unit(42, "homepage-hero", visitorToken)
func Unit(seed uint64, parts ...string) float64 {
	return float64(Sum64(seed, parts...)>>11) * unitScale
}
