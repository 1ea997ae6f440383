package sql

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// foldCaser performs Unicode-aware case folding for EqualFold/
// ContainsFold predicates. Using golang.org/x/text/cases instead of
// strings.ToLower avoids locale-specific surprises (Turkish dotless "i",
// German sharp s) that a byte-wise lowercase would get wrong.
var foldCaser = cases.Fold(cases.Compact)

// foldPattern normalizes v with Unicode case folding so ContainsFold/
// EqualFold compare consistently regardless of the database's own
// collation. No language tag is applied: field values carry no locale
// of their own, and cases.Fold is locale-agnostic.
func foldPattern(v string) string {
	_ = language.Und
	return foldCaser.String(v)
}
