package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber renders INV-<year>-<seq>, padding seq to at least three digits.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

// ParseSequence returns the trailing sequence of an invoice number.
func ParseSequence(number string) (int64, bool) {
	i := strings.LastIndex(number, "-")
	if i < 0 || i == len(number)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(number[i+1:], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
