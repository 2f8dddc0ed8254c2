package dispatch

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator generates placeholder identifiers for locally created
// entities. Implemented by UUIDv7Generator (production) and
// testutil.SequenceGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// placeholderPrefix marks identifiers that exist only client-side. The
// prefix keeps placeholders out of the server's id space so a confirmed
// entity can never collide with an unconfirmed one.
const placeholderPrefix = "local-"

// PlaceholderID produces a fresh placeholder identifier.
func PlaceholderID(gen IDGenerator) string {
	return placeholderPrefix + gen.Generate()
}

// IsPlaceholder reports whether id was generated locally and has not
// been replaced by a server-assigned identity.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}
