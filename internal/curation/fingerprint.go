package curation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeQuery canonicalizes a search query: unicode case folding and
// whitespace collapsing. Two queries that differ only in casing or
// spacing normalize to the same string.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Fingerprint derives the deterministic cache key for a search request.
// The key is a pure function of (source, normalized query, canonically
// ordered filters), so semantically identical requests always map to the
// same cache entry regardless of which plan produced them.
func Fingerprint(source, query string, filters map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(source)))
	b.WriteByte('\n')
	b.WriteString(NormalizeQuery(query))
	b.WriteByte('\n')

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(strings.ToLower(k))
		b.WriteByte('=')
		b.WriteString(NormalizeQuery(filters[k]))
		b.WriteByte('&')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
