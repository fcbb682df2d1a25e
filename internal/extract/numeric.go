package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	numericOnly    = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	currencyMarks  = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "INR", "", "$", "")
	confusionPairs = strings.NewReplacer("O", "0", "o", "0", "l", "1", "I", "1", "S", "5", "B", "8")
)

// normalizeNumeric prepares OCR text for numeric parsing: strips currency
// symbols, thousands separators and whitespace, then substitutes the common
// digit/letter confusions (O for 0, l for 1, and so on). Substitution only
// happens when the remainder is digit-dominated, so words like "Blood" are
// left alone.
func normalizeNumeric(text string) string {
	s := currencyMarks.Replace(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return s
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	// Require the string to already be mostly digits before repairing
	// confused characters.
	if digits*2 >= len(s) {
		s = confusionPairs.Replace(s)
	}
	return s
}

// parseNumber extracts a numeric value from OCR text, tolerant of currency
// symbols, thousands separators and digit confusions. The boolean is false
// when no number is present.
func parseNumber(text string) (float64, bool) {
	s := normalizeNumeric(text)
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isNumericText reports whether the text is primarily a number once
// normalized. Used for band classification and the readability gate.
func isNumericText(text string) bool {
	return numericOnly.MatchString(normalizeNumeric(text))
}

// normalizeText lowercases and trims for keyword comparison.
func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
