package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "_"

// idDigestLength is the number of hex characters kept from an ID list digest.
const idDigestLength = 20

// KeySerializer builds a cache key from a prefix and the lookup's arguments.
// Keys must be stable across processes because they are shared through the
// host store.
type KeySerializer interface {
	SerializeKey(prefix string, args ...any) string
}

// defaultKeySerializer joins segments with KeySeparator. Integer ID lists are
// order independent: they are sorted numerically and replaced by a truncated
// md5 digest.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

func (s *defaultKeySerializer) SerializeKey(prefix string, args ...any) string {
	if len(args) == 0 {
		return prefix
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, prefix)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return strings.TrimSpace(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []int:
		return IDListDigest(val)
	case []string:
		return strings.Join(val, ",")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IDListDigest returns the first 20 hex characters of the md5 digest of the
// numerically sorted, comma joined ids. The input slice is not modified.
func IDListDigest(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])[:idDigestLength]
}

// LiteralKeySegment trims s and truncates it to the digest length, so single
// literal identifiers produce keys of the same bounded size as ID lists.
func LiteralKeySegment(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > idDigestLength {
		s = s[:idDigestLength]
	}
	return s
}
