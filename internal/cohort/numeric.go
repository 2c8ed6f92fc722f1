package cohort

import (
	"math"
	"strconv"
	"strings"
)

// ToNumeric converts a monetary or quantity text into a number. Both
// "1.234,56" and "1234.56" read as 1234.56, and "10,5" reads as 10.5.
// Characters other than digits, separators and the minus sign are ignored.
// The second return value is false when nothing numeric remains.
func ToNumeric(s string) (float64, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	switch {
	case lastComma >= 0 && lastDot < 0:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		// the right-most separator is the decimal one
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// EnsureNumeric fills Cost and Quantity from their raw text. A missing cost
// is 0 and a missing quantity is 1.
func EnsureNumeric(row *Row) {
	if v, ok := ToNumeric(row.CostRaw); ok {
		row.Cost = v
	} else {
		row.Cost = 0
	}
	if v, ok := ToNumeric(row.QuantityRaw); ok {
		row.Quantity = v
	} else {
		row.Quantity = 1
	}
}
