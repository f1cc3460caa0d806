package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTitleLength is the longest title CleanTitle returns, in runes.
const MaxTitleLength = 50

const maxCleanPasses = 8

var (
	livePrefixRe  = regexp.MustCompile(`(?i)^\s*(?:LIVE(?:\s*\|\s*|\s+|$))+`)
	attributionRe = regexp.MustCompile(`(?i)\s*\|\s*WORSHIP & WORD OF GOD BY.*$`)
)

// CleanTitle turns a raw upload title into a display title: leading LIVE
// marker and ministry attribution suffix removed, pipes dropped, each word
// title-cased, at most MaxTitleLength runes.
//
// The result is a fixed point: CleanTitle(CleanTitle(s)) == CleanTitle(s).
func CleanTitle(title string) string {
	out := cleanOnce(title)
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func cleanOnce(title string) string {
	s := livePrefixRe.ReplaceAllString(title, "")
	s = attributionRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "|", "")
	s = strings.TrimSpace(s)
	s = titleCase(s)
	s = truncateRunes(s, MaxTitleLength)
	return strings.TrimSpace(s)
}

// titleCase lowercases s and uppercases the first rune of every space-separated word.
// Runs of spaces are kept as they are.
func titleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
