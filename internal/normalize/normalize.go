// Package normalize provides the text normalization used to group and compare clippings.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultDuplicateThreshold is the similarity threshold used by PotentialDuplicates.
// Two contents may differ in length by at most 1-threshold of the longer one.
const DefaultDuplicateThreshold = 0.9

// bookKeySeparator joins the normalized title and author in a book key.
const bookKeySeparator = "::"

// Text composes s to NFC, lowercases it, trims it, and collapses every run
// of whitespace to a single space.
func Text(s string) string {
	// Casers carry state, so one is built per call instead of shared.
	lowered := cases.Lower(language.Und).String(norm.NFC.String(s))
	return strings.Join(strings.Fields(lowered), " ")
}

// BookKey derives the in-memory grouping key for a (title, author) pair.
// Titles and authors that differ only in case or whitespace share a key.
func BookKey(title, author string) string {
	return Text(title) + bookKeySeparator + Text(author)
}

// PotentialDuplicates reports whether two clipping contents look like duplicates
// under DefaultDuplicateThreshold.
func PotentialDuplicates(a, b string) bool {
	return PotentialDuplicatesWithThreshold(a, b, DefaultDuplicateThreshold)
}

// PotentialDuplicatesWithThreshold compares two contents after normalization.
//
// Equal normalized strings are duplicates. Otherwise the length difference,
// relative to the longer string, must not exceed 1-threshold, and the shorter
// string must appear verbatim inside the longer one. Reordered or paraphrased
// text is not detected.
func PotentialDuplicatesWithThreshold(a, b string, threshold float64) bool {
	n1 := Text(a)
	n2 := Text(b)

	if n1 == n2 {
		return true
	}

	len1 := utf8.RuneCountInString(n1)
	len2 := utf8.RuneCountInString(n2)

	shorter, longer := n1, n2
	shortLen, longLen := len1, len2
	if len1 > len2 {
		shorter, longer = n2, n1
		shortLen, longLen = len2, len1
	}

	lengthDiffRatio := float64(longLen-shortLen) / float64(longLen)
	if lengthDiffRatio > 1-threshold {
		return false
	}

	return strings.Contains(longer, shorter)
}
