package polls

import "strings"

// Field selects exactly one sub-field of a poll document for an atomic
// write or delete. Selectors are built from typed constructors rather than
// interpolated strings so a store backend can render them without any
// injection or path-mismatch risk.
type Field struct {
	segments []string
}

// FieldParticipant selects participants.<userID>.
func FieldParticipant(userID string) Field {
	return Field{segments: []string{"participants", userID}}
}

// FieldNomination selects nominations.<nominationID>.
func FieldNomination(nominationID string) Field {
	return Field{segments: []string{"nominations", nominationID}}
}

// FieldRankings selects rankings.<userID>.
func FieldRankings(userID string) Field {
	return Field{segments: []string{"rankings", userID}}
}

// FieldHasStarted selects the hasStarted flag.
func FieldHasStarted() Field {
	return Field{segments: []string{"hasStarted"}}
}

// Path renders the selector as a RedisJSON legacy path rooted at the document.
func (f Field) Path() string {
	return "." + strings.Join(f.segments, ".")
}

// Segments returns the selector parts, outermost first.
func (f Field) Segments() []string {
	return f.segments
}
