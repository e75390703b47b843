package domain

import "strings"

// NormalizeSex maps the sex spellings accepted on input (f, female, ewe,
// m, male, ram, any case) to the canonical values. Unrecognized tokens are
// returned lowercased so downstream matching stays flexible.
func NormalizeSex(v string) Sex {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "":
		return ""
	case "f", "female", "ewe":
		return SexEwe
	case "m", "male", "ram":
		return SexRam
	}
	return Sex(s)
}

// NormalizeStatus canonicalizes a status for comparison: trimmed and
// lowercased. The stored value is left untouched by callers that only
// classify.
func NormalizeStatus(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Normalize canonicalizes a record at the repository write boundary: sex
// spelling variants collapse to canonical values and the primary due-date
// field absorbs the first alias when empty. Alias fields are preserved so
// reads of legacy data keep working.
func Normalize(s Sheep) Sheep {
	s.Sex = NormalizeSex(string(s.Sex))
	if s.ExpectedDueDate == "" {
		if cands := s.DueDateCandidates(); len(cands) > 0 {
			s.ExpectedDueDate = cands[0]
		}
	}
	return s
}

// EqualFold reports whether two reference strings match after trimming and
// case folding. Used for name-based parent resolution.
func EqualFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
