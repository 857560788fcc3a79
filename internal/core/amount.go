package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts user input into a strictly positive, finite amount.
//
// Grouping separators (",", "'", "_" and spaces) are stripped before parsing,
// so "1,234.50" and "1 234.50" both parse to 1234.5.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("1,000")    -> 1000, nil
//	ParseAmount("0")        -> 0, ErrInvalidAmount
//	ParseAmount("Infinity") -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '\'', '_', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
