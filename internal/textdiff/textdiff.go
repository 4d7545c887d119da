// Package textdiff wraps the difflib sequence matcher used by both the
// version mapper and the change detector: a normalized similarity ratio
// over characters and an edit script over arbitrary string sequences.
package textdiff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// OpCode is one run of the edit script. Tag is 'e' (equal), 'd' (delete),
// 'i' (insert) or 'r' (replace); I1:I2 indexes the old sequence, J1:J2 the
// new one.
type OpCode = difflib.OpCode

// Ratio returns the similarity of two strings as 2*M/T, where M is the
// number of matched characters and T the total length of both strings.
// Two empty strings are identical (ratio 1).
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	m := difflib.NewMatcher(explode(a), explode(b))
	return m.Ratio()
}

// Opcodes returns the minimal edit script covering both sequences in
// order. Elements are compared for exact equality.
func Opcodes(old, new []string) []OpCode {
	return difflib.NewMatcher(old, new).GetOpCodes()
}

// explode splits a string into its runes so the matcher operates at
// character granularity.
func explode(s string) []string {
	return strings.Split(s, "")
}
