// Package keys builds the storage keys shared by the server, the CLI and
// the invalidation consumer.
package keys

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	// ListingKey holds the cached unfiltered listing.
	ListingKey = "listing:all"
	// DemoRecordsKey holds the demo store's JSON array of records.
	DemoRecordsKey = "demo_properties"
)

// Scopes map to the view-specific filter keys.
const (
	ScopeMap      = "map"
	ScopeProperty = "property"
)

var scopeKeys = map[string]string{
	ScopeMap:      "map_filters",
	ScopeProperty: "property_filters",
}

// ValidScope reports whether scope names a known filter view.
func ValidScope(scope string) bool {
	_, ok := scopeKeys[strings.ToLower(strings.TrimSpace(scope))]
	return ok
}

// FilterKey returns the key of a view's filter state, optionally narrowed to
// one session: map_filters, property_filters:<session>. Unknown scopes get
// a sanitized "<scope>_filters" key.
func FilterKey(scope, session string) string {
	scope = strings.ToLower(strings.TrimSpace(scope))
	base, ok := scopeKeys[scope]
	if !ok {
		base = sanitizeForKey(scope) + "_filters"
	}
	session = sessionKey(strings.TrimSpace(session))
	if session == "" {
		return base
	}
	return base + ":" + session
}

const maxSessionLen = 64

// sessionKey keeps ids made of [A-Za-z0-9_-] up to maxSessionLen as they are.
// Anything else is replaced by "#" and its xxhash, which no kept id can
// spell, so distinct ids never share a key.
func sessionKey(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= maxSessionLen && cleanID(s) {
		return s
	}
	return "#" + strconv.FormatUint(xxhash.Sum64String(s), 16)
}

func cleanID(s string) bool {
	for _, r := range s {
		if !isAlphaNum(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// MemoKey hashes the inputs of one evaluation. canonical must be a stable
// encoding of the filter state.
func MemoKey(fingerprint uint64, canonical []byte, order string) uint64 {
	d := xxhash.New()
	var fp [8]byte
	for i := range fp {
		fp[i] = byte(fingerprint >> (8 * i))
	}
	_, _ = d.Write(fp[:])
	_, _ = d.Write(canonical)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(order)
	return d.Sum64()
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
