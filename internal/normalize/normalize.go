// Package normalize turns raw supplier text into canonical identity keys
// and canonical measurement values.
//
// Supplier CSVs are messy: mixed casing, stray whitespace, Unicode dash
// variants, diacritics, and free-text dimension columns. Every function in
// this package is total - bad input degrades to an empty string or a nil
// measurement, never an error. Only identity-field emptiness is treated as
// a hard rejection, and that decision belongs to the import engine, not here.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes characters and strips combining marks, so that
// "Würth" and "Wurth" produce the same identity key.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// scalarPattern matches a single measurement token like "12.00mm", "0.5 in"
// or "1,5cm". The unit is optional and defaults to millimeters.
var scalarPattern = regexp.MustCompile(`(?i)^([0-9]+(?:[.,][0-9]+)?)\s*(mm|cm|m|in|mil|")?$`)

// pairPattern splits a dimension pair like "12.00mm x 12.00mm" on the
// separator, tolerating "x", "X", "*" and the Unicode multiplication sign.
var pairPattern = regexp.MustCompile(`^(.+?)\s*[xX*\x{00d7}]\s*(.+)$`)

// Identity canonicalizes a manufacturer name or part number for use as a
// de-duplication key: diacritics folded, uppercased, whitespace runs and
// dash variants collapsed to a single ASCII hyphen, leading and trailing
// separators stripped. Empty or whitespace-only input yields "".
func Identity(raw string) string {
	folded, _, err := transform.String(asciiFold, raw)
	if err != nil {
		// Fold failure means malformed UTF-8; fall back to the raw bytes
		// rather than rejecting the value.
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToUpper(folded) {
		if unicode.IsSpace(r) || isDash(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// isDash reports whether r is an ASCII hyphen or one of the Unicode dash
// variants that suppliers paste in from datasheets.
func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '―', '−':
		return true
	}
	return false
}

// Dimension parses a single "<number><unit>" token to millimeters.
// Unrecognized input yields nil; a malformed dimension must never abort
// an import.
func Dimension(raw string) *float64 {
	m := scalarPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}

	switch strings.ToLower(m[2]) {
	case "", "mm":
		// already millimeters
	case "cm":
		v *= 10
	case "m":
		v *= 1000
	case "in", `"`:
		v *= 25.4
	case "mil":
		v *= 0.0254
	}
	return &v
}

// DimensionPair parses a "<number><unit> x <number><unit>" string (the
// conventional "Package (LxW)" column) into (length, width) in millimeters.
// Any format it does not recognize yields (nil, nil).
func DimensionPair(raw string) (length, width *float64) {
	m := pairPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, nil
	}

	length = Dimension(m[1])
	width = Dimension(m[2])
	if length == nil || width == nil {
		// Half a pair is not a pair; treat the whole value as unparseable.
		return nil, nil
	}
	return length, width
}
