// Package normalize turns raw text pulled off product pages into typed values.
//
// Every function here is pure: the same input always yields the same output
// and nothing outside the arguments is read or written.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern       = regexp.MustCompile(`\d+(?:,\d+)?`)
	weightVolumePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)[\s\p{Zs}]*(gr|g|kg|ml|l)\b`)
)

// ExtractNumber reads the first number in text. Dots are treated as grouping
// separators and a comma as the decimal separator, so "$1.234,56" is 1234.56.
// It returns nil when text holds no digits.
func ExtractNumber(text string) *float64 {
	if text == "" {
		return nil
	}
	token := numberPattern.FindString(strings.ReplaceAll(text, ".", ""))
	if token == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractWeightVolume finds the first "<number><unit>" token in text and
// returns it in grams or milliliters. Kilograms and liters are scaled by 1000.
func ExtractWeightVolume(text string) *float64 {
	if text == "" {
		return nil
	}
	m := weightVolumePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	switch strings.ToLower(m[2]) {
	case "kg", "l":
		v *= 1000
	}
	return &v
}

// CleanText trims text and collapses runs of whitespace, no-break spaces
// included, into one space.
// Empty input yields nil.
func CleanText(text string) *string {
	if text == "" {
		return nil
	}
	s := Squash(text)
	return &s
}

// Squash is CleanText for callers that want a plain string.
func Squash(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CleanURL drops the fragment and trailing slashes so the result can be used
// as a dedup and storage key. CleanURL(CleanURL(u)) == CleanURL(u).
func CleanURL(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/")
}
