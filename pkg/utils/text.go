package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// spamRunLength is how many identical consecutive characters make a text look
// like keyboard mashing.
const spamRunLength = 5

var foldDiacritics = runes.Map(func(r rune) rune {
	switch r {
	case 'đ':
		return 'd'
	case 'Đ':
		return 'D'
	}
	return r
})

// Fold lower-cases s and strips combining marks, so "Áo" and "ao" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), foldDiacritics, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// MatchesKeyword reports whether keyword occurs in any of fields after folding.
// An empty keyword matches everything.
func MatchesKeyword(keyword string, fields ...string) bool {
	needle := strings.TrimSpace(Fold(keyword))
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), needle) {
			return true
		}
	}
	return false
}

// IsListingName accepts names with at least one letter built from letters,
// digits, spaces and a short list of punctuation.
func IsListingName(s string) bool {
	hasLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r), r == ' ':
		case strings.ContainsRune(`-_,.()/&+'"#:!?%`, r):
		default:
			return false
		}
	}
	return hasLetter
}

// LooksLikeSpam flags text made of a single repeated character or containing a
// run of spamRunLength identical letters or symbols. Digits and whitespace do
// not count towards runs so prices and formatting pass.
func LooksLikeSpam(s string) bool {
	distinct := make(map[rune]struct{})
	var prev rune
	run := 0
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			run = 0
			prev = 0
			continue
		}
		distinct[r] = struct{}{}
		if unicode.IsDigit(r) {
			run = 0
			prev = 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= spamRunLength {
			return true
		}
	}
	return len(distinct) == 1
}
