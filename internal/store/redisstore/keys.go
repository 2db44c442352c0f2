package redisstore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/finscope/histcache/internal/series"
)

// Redis layout per cache key: one ZSET of dates (member "2006-01-02",
// score epoch day) that serves range queries and coverage, and one HASH
// of date -> payload blob. Both names embed a hash of the raw key so
// sanitization can never collide two real symbols ("BRK.B" vs "BRK_B").

func keyBase(k series.Key) string {
	sum := xxhash.Sum64String(k.Dataset + "\x00" + k.Symbol)
	return fmt.Sprintf("hist:%s:%s:k=%016x", sanitize(k.Dataset), sanitize(k.Symbol), sum)
}

func indexKey(k series.Key) string { return keyBase(k) + ":days" }
func rowsKey(k series.Key) string  { return keyBase(k) + ":rows" }

// sanitize keeps alphanumerics and a few safe separators, mapping
// whitespace to '_' and anything else to '-', collapsing runs.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '.' || r == '_' || r == '-':
			out = r
		default:
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
		unicode.IsDigit(r)
}
