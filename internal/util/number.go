package util

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrNotNumeric = errors.New("not a number")

var (
	groupedDot     = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	groupedComma   = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	digitsOnly     = regexp.MustCompile(`^\d+$`)
	currencyPrefix = regexp.MustCompile(`(?i)^(?:rp\.?|idr)`)
)

// ParseAmount converts a currency cell such as "Rp1.500" or "1.234,56" to an
// integral amount. The fraction is truncated.
func ParseAmount(text string) (int64, error) {
	v, err := ParseNumber(text)
	if err != nil {
		return 0, err
	}
	return TruncAmount(v)
}

// TruncAmount drops the fraction of v. Values outside the int64 range, NaN
// and infinities are ErrNotNumeric.
func TruncAmount(v float64) (int64, error) {
	t := math.Trunc(v)
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, ErrNotNumeric
	}
	return int64(t), nil
}

func ParseNumber(text string) (float64, error) {
	token, ok := normalizeNumericToken(text)
	if !ok {
		return 0, ErrNotNumeric
	}
	return strconv.ParseFloat(token, 64)
}

// normalizeNumericToken rewrites a locale formatted number to the plain
// "-1234.56" form. When both '.' and ',' occur the last one is the decimal
// separator; a single kind is grouping only when it splits thousands.
func normalizeNumericToken(text string) (string, bool) {
	s := strings.ReplaceAll(text, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = currencyPrefix.ReplaceAllString(s, "")
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return "", false
	}
	if strings.ContainsAny(s, "eE") {
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", false
		}
		return sign(neg) + s, true
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	intPart, frac := s, ""
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec, grouping := lastDot, ","
		if lastComma > lastDot {
			dec, grouping = lastComma, "."
		}
		intPart = strings.ReplaceAll(s[:dec], grouping, "")
		frac = s[dec+1:]
	case lastComma >= 0:
		intPart, frac = splitSingle(s, ",", groupedComma)
	case lastDot >= 0:
		intPart, frac = splitSingle(s, ".", groupedDot)
	}

	if intPart == "" && frac != "" {
		intPart = "0"
	}
	if !digitsOnly.MatchString(intPart) {
		return "", false
	}
	if frac != "" && !digitsOnly.MatchString(frac) {
		return "", false
	}
	if frac == "" {
		return sign(neg) + intPart, true
	}
	return sign(neg) + intPart + "." + frac, true
}

func splitSingle(s, sep string, grouped *regexp.Regexp) (string, string) {
	if grouped.MatchString(s) {
		return strings.ReplaceAll(s, sep, ""), ""
	}
	if strings.Count(s, sep) != 1 {
		// left unparsable on purpose: the digit check rejects it
		return s, ""
	}
	idx := strings.Index(s, sep)
	return s[:idx], s[idx+1:]
}

func sign(neg bool) string {
	if neg {
		return "-"
	}
	return ""
}
