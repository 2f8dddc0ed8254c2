package grid

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the canonical form of a display name: NFC
// normalized with surrounding whitespace trimmed. Property names that
// differ only in Unicode normalization form refer to the same property.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// EqualNames reports whether two display names are equal under
// canonical normalization.
func EqualNames(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
