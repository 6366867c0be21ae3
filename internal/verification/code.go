// internal/verification/code.go

// Package verification derives the deterministic six-digit code that gates
// report submission. The code is a pure function of the launch metadata, so
// the party that generated the form link can compute it independently.
package verification

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// fieldSep keeps parity with the JavaScript generator that first produced
// these codes (U+241F, SYMBOL FOR UNIT SEPARATOR).
const fieldSep = "␟"

// Normalize strips diacritics, collapses whitespace runs and uppercases,
// so visually equivalent inputs hash identically.
func Normalize(value string) string {
	decomposed := norm.NFD.String(value)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		// combining diacritical marks block
		if r >= 0x0300 && r <= 0x036f {
			continue
		}
		b.WriteRune(r)
	}
	collapsed := strings.Join(strings.Fields(b.String()), " ")
	return strings.ToUpper(collapsed)
}

// Digits returns only the decimal digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Code computes the six-digit submission code for a report's launch
// metadata. The NIT contributes digits only; the other fields are
// normalized first.
func Code(id, ciudad, nit, nombreEmpresa string) string {
	payload := strings.Join([]string{
		Normalize(id),
		Normalize(ciudad),
		Digits(nit),
		Normalize(nombreEmpresa),
	}, fieldSep)
	return fmt.Sprintf("%06d", fnv1a32(payload)%1_000_000)
}

// Matches reports whether user input names the expected code. Non-digit
// characters in the input are ignored.
func Matches(expected, entered string) bool {
	return Digits(entered) == expected
}

// fnv1a32 hashes UTF-16 code units with the shift-add mixing the original
// JavaScript generator used in place of the FNV prime multiply. Keeping the
// exact arithmetic keeps codes stable across implementations.
func fnv1a32(s string) uint32 {
	h := uint32(0x811c9dc5)
	for _, cu := range utf16.Encode([]rune(s)) {
		h ^= uint32(cu)
		h += (h << 1) + (h << 4) + (h << 7) + (h << 8) + (h << 24)
	}
	return h
}
