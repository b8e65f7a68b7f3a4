package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// missingMarkers are the cell spellings pandas reads as NA by default.
var missingMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
	"#NA":  {},
}

func IsMissing(value string) bool {
	_, ok := missingMarkers[strings.TrimSpace(value)]
	return ok
}

// NormalizeColumnName trims a header cell and collapses inner whitespace so
// that "Total  Pembayaran " and "Total Pembayaran" name the same column.
func NormalizeColumnName(input string) string {
	s := strings.TrimPrefix(input, "\ufeff")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
