package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// keyPrefix namespaces every key this module writes, so a shared cache
// instance can be swept with RemoveByPrefix without touching foreign entries.
const keyPrefix = "mfi"

// hashLength balances uniqueness against key length for hashed suffixes.
const hashLength = 12

// Key builds a deterministic cache key from an entity table name, an
// operation name and an optional suffix: "mfi::members::get::42".
func Key(table, op, suffix string) string {
	parts := []string{keyPrefix, table, op}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, KeySeparator)
}

// IDKey builds the id-addressed key for a single entity.
func IDKey(table string, id int64) string {
	return Key(table, "get", strconv.FormatInt(id, 10))
}

// EntityPrefix returns the invalidation prefix covering every key written
// for one entity table.
func EntityPrefix(table string) string {
	return keyPrefix + KeySeparator + table + KeySeparator
}

// HashSuffix collapses arbitrary key material (predicate fragments, query
// arguments) into a short stable suffix. xxhash keeps keys bounded without
// resorting to cryptographic hashing.
func HashSuffix(parts ...string) string {
	h := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.WriteString(KeySeparator)
		}
		_, _ = h.WriteString(p)
	}
	full := fmt.Sprintf("%016x", h.Sum64())
	return full[:hashLength]
}
