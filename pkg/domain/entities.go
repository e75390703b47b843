// Package domain defines the core persistent entities, value types, and
// normalization primitives used by flockcore.
package domain

import (
	"strings"
	"time"
)

// Sex identifies the canonical sex of an animal record.
type Sex string

// Canonical sex values. Input is normalized case-insensitively; unrecognized
// tokens are kept lowercased so legacy records still match flexibly.
const (
	SexEwe     Sex = "ewe"
	SexRam     Sex = "ram"
	SexUnknown Sex = "unknown"
)

// Canonical status values. Status is free-form in storage; these constants
// cover the values the classification rules recognize.
const (
	StatusActive     = "active"
	StatusToBeCulled = "to-be-culled"
	StatusCulled     = "culled"
	StatusSold       = "sold"
	StatusArchived   = "archived"
	StatusDied       = "died"
)

// WeightSample is one entry of an animal's append-only weight history.
type WeightSample struct {
	Date   string `json:"date"`
	Weight string `json:"weight"`
}

// BreedingRecord is one explicit breeding event recorded on a ewe.
type BreedingRecord struct {
	Date string `json:"date"`
	Sire string `json:"sire"`
	Note string `json:"note,omitempty"`
}

// LambingEvent is one lambing, explicit or inferred. Count and Children
// tolerate the legacy encodings found in stored records (string counts,
// single-string children).
type LambingEvent struct {
	Date     string      `json:"date"`
	Count    FlexInt     `json:"count"`
	Sire     string      `json:"sire,omitempty"`
	Children FlexStrings `json:"children,omitempty"`
}

// FinanceEntry is one row of the income/expense ledger.
type FinanceEntry struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Desc   string  `json:"desc"`
}

// JournalEntry is a dated free-text report note.
type JournalEntry struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// Sheep is the central mutable aggregate: one animal record. All fields are
// optional except ID; dates are stored as strings because legacy records
// carry free-text values that must survive round-trips.
//
// Sire and Dam hold either the parent's id or its display name; resolution
// is the lineage package's job. The underscore-prefixed JSON names mirror
// the stored schema and must not change.
type Sheep struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Breed     string `json:"breed,omitempty"`
	Sex       Sex    `json:"sex,omitempty"`
	Status    string `json:"status,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`

	// Age is fallback display text used when BirthDate is absent. FrozenAge
	// snapshots the computed age when status turns terminal; display must
	// not advance until status returns to active.
	Age       string `json:"age,omitempty"`
	FrozenAge string `json:"frozenAge,omitempty"`

	Weight  string         `json:"weight,omitempty"`
	Weights []WeightSample `json:"weights,omitempty"`

	Sire     string `json:"sire,omitempty"`
	Dam      string `json:"dam,omitempty"`
	Pedigree string `json:"pedigree,omitempty"`

	BredDate        string `json:"bredDate,omitempty"`
	ExpectedDueDate string `json:"expectedDueDate,omitempty"`

	// Legacy due-date aliases kept so alias coalescing is explicit at the
	// domain boundary instead of scattered through business logic.
	ExpectedDueDates FlexStrings `json:"expectedDueDates,omitempty"`
	NextDue          string      `json:"nextDue,omitempty"`
	DueDate          string      `json:"dueDate,omitempty"`
	DueDates         FlexStrings `json:"dueDates,omitempty"`
	Due              string      `json:"due,omitempty"`
	Expected         string      `json:"expected,omitempty"`

	// Cache of the most recent breeding, used to default the sire on a
	// subsequent lambing entry.
	LastBreedingSire string `json:"_lastBreedingSire,omitempty"`
	LastBredDate     string `json:"_lastBredDate,omitempty"`

	Breedings []BreedingRecord `json:"breedings,omitempty"`
	Lambings  []LambingEvent   `json:"lambings,omitempty"`

	Notes string `json:"notes,omitempty"`

	// Health metrics.
	FAMACHA     string `json:"famacha,omitempty"`
	FAMACHADate string `json:"famachaDate,omitempty"`
	BCS         string `json:"bcs,omitempty"`
	BCSDate     string `json:"bcsDate,omitempty"`

	// Status transition dates.
	DeathDate  string `json:"deathDate,omitempty"`
	SoldDate   string `json:"soldDate,omitempty"`
	CullDate   string `json:"cullDate,omitempty"`
	StatusDate string `json:"statusDate,omitempty"`

	// Legacy single-field lambing schema.
	LastLambCount   FlexInt `json:"lastLambCount,omitempty"`
	LastLambingDate string  `json:"lastLambingDate,omitempty"`
}

// Label returns the display label for the record: name, falling back to id.
func (s Sheep) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// DueDateCandidates gathers every due-date alias value in priority order,
// splitting comma/semicolon-separated lists. The result may contain
// unparseable text; callers decide how to resolve it.
func (s Sheep) DueDateCandidates() []string {
	var out []string
	push := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if strings.ContainsAny(v, ",;") {
			for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }) {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			return
		}
		out = append(out, v)
	}
	push(s.ExpectedDueDate)
	for _, v := range s.ExpectedDueDates {
		push(v)
	}
	push(s.NextDue)
	push(s.DueDate)
	for _, v := range s.DueDates {
		push(v)
	}
	push(s.Due)
	push(s.Expected)
	return out
}

// Clone returns a deep copy of the record.
func (s Sheep) Clone() Sheep {
	cp := s
	cp.Weights = append([]WeightSample(nil), s.Weights...)
	cp.Breedings = append([]BreedingRecord(nil), s.Breedings...)
	cp.ExpectedDueDates = append(FlexStrings(nil), s.ExpectedDueDates...)
	cp.DueDates = append(FlexStrings(nil), s.DueDates...)
	if s.Lambings != nil {
		cp.Lambings = make([]LambingEvent, len(s.Lambings))
		for i, ev := range s.Lambings {
			ev.Children = append(FlexStrings(nil), ev.Children...)
			cp.Lambings[i] = ev
		}
	}
	return cp
}

// dateLayouts are tried in order when parsing stored date text.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
}

// ParseDate parses the loose date text found in stored records. The second
// return is false when nothing parseable remains.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ISODate formats a time as the stored YYYY-MM-DD form.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}
