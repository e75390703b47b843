// Package classify holds the status, tab, and sort rules used to slice the
// flock into dashboard views.
package classify

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"flockcore/internal/lineage"
	"flockcore/pkg/domain"
)

// Dashboard tab identifiers.
const (
	TabAll          = "all"
	TabActiveEwes   = "active-ewes"
	TabActiveRams   = "active-rams"
	TabCurrentLambs = "current-lambs"
	TabCulled       = "culled"
	TabToBeCulled   = "to-be-culled"
	TabSold         = "sold"
	TabArchived     = "archived"
)

// lambMonths is the age below which an animal lands in the lambs tab
// instead of the active ewe/ram lists.
const lambMonths = 4

// IsActiveStatus reports whether a status keeps the animal in day-to-day
// views. Empty status counts as active; "to-be-culled" stays active until
// the animal is actually marked culled.
func IsActiveStatus(status string) bool {
	if status == "" {
		return true
	}
	switch domain.NormalizeStatus(status) {
	case domain.StatusCulled, domain.StatusSold, domain.StatusArchived:
		return false
	}
	return true
}

// IsLamb reports whether the animal is under four whole calendar months
// old. Day-of-month is ignored: only year and month deltas count, matching
// how the stored data has always been bucketed.
func IsLamb(s domain.Sheep, now time.Time) bool {
	bd, ok := domain.ParseDate(s.BirthDate)
	if !ok {
		return false
	}
	months := (now.Year()-bd.Year())*12 + int(now.Month()) - int(bd.Month())
	return months < lambMonths
}

// MatchesTab reports whether a record belongs on the given dashboard tab.
// The "all" tab shows only active animals so it stays useful for daily
// work; lambs appear only under "current-lambs", never in the active
// ewe/ram lists. Unknown tabs match everything.
func MatchesTab(s domain.Sheep, tab string, now time.Time) bool {
	if tab == "" {
		return true
	}
	if tab == TabAll {
		return IsActiveStatus(s.Status)
	}
	status := domain.NormalizeStatus(s.Status)
	switch tab {
	case TabActiveEwes:
		return IsActiveStatus(s.Status) && s.Sex == domain.SexEwe && !IsLamb(s, now)
	case TabActiveRams:
		return IsActiveStatus(s.Status) && s.Sex == domain.SexRam && !IsLamb(s, now)
	case TabCurrentLambs:
		return IsActiveStatus(s.Status) && IsLamb(s, now)
	case TabCulled:
		return status == domain.StatusCulled
	case TabToBeCulled:
		return status == "to-be-culled" || status == "to be culled" || status == "tobe-culled"
	case TabSold:
		return status == domain.StatusSold
	case TabArchived:
		return status == domain.StatusArchived
	}
	return true
}

// SortState is the dashboard table sort selection.
type SortState struct {
	Field string
	Asc   bool
}

// Sorter compares records for table ordering. Summarize supplies lambing
// summaries for the history-derived fields; Now anchors the relative-day
// fields.
type Sorter struct {
	Now       time.Time
	Summarize func(domain.Sheep) lineage.Summary
}

// Compare orders a before b when negative. Missing or unparseable values
// sort to the end of an ascending view: missing dates and due dates read
// as infinitely far in the future, and a missing last-lambing date reads
// as infinitely many days post-lambing.
func (srt Sorter) Compare(a, b domain.Sheep, state SortState) int {
	dir := 1
	if !state.Asc {
		dir = -1
	}
	return dir * srt.compare(a, b, state.Field)
}

func (srt Sorter) compare(a, b domain.Sheep, field string) int {
	switch field {
	case "name":
		return compareText(a.Name, b.Name)
	case "id":
		return compareText(a.ID, b.ID)
	case "breed":
		return compareText(a.Breed, b.Breed)
	case "sire":
		return compareText(a.Sire, b.Sire)
	case "dam":
		return compareText(a.Dam, b.Dam)
	case "sex":
		return compareText(string(a.Sex), string(b.Sex))
	case "weight":
		return cmpFloat(leadingFloat(a.Weight), leadingFloat(b.Weight))
	case "age":
		return cmpFloat(srt.ageDays(a), srt.ageDays(b))
	case "expectedDueDate":
		return cmpFloat(dueTime(a), dueTime(b))
	case "pastLambing":
		return cmpFloat(srt.lambingRank(a), srt.lambingRank(b))
	case "bredDate":
		return cmpFloat(dateMillis(a.BredDate), dateMillis(b.BredDate))
	case "daysUntil":
		return cmpFloat(srt.daysUntilDue(a), srt.daysUntilDue(b))
	case "daysPost":
		return cmpFloat(srt.daysPostLambing(a), srt.daysPostLambing(b))
	case "lastLambingDate":
		return cmpFloat(dateMillis(srt.Summarize(a).LastDate), dateMillis(srt.Summarize(b).LastDate))
	}
	return 0
}

const farFuture = 1e18

// Text fields sort with locale-aware collation, case and diacritics
// folded. Collators buffer internally, so access is serialized.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.English, collate.Loose)
)

func compareText(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// leadingFloat parses the numeric prefix of a weight cell ("120 lbs"),
// zero when there is none.
func leadingFloat(v string) float64 {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) {
		c := v[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(v[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

func (srt Sorter) ageDays(s domain.Sheep) float64 {
	bd, ok := domain.ParseDate(s.BirthDate)
	if !ok {
		return farFuture
	}
	return float64(int(srt.Now.Sub(bd).Hours() / 24))
}

// dueTime orders by the raw primary due fields only; the full alias chain
// is a data-entry convenience, not a sort key.
func dueTime(s domain.Sheep) float64 {
	raw := s.ExpectedDueDate
	if raw == "" {
		raw = s.NextDue
	}
	if raw == "" {
		raw = s.DueDate
	}
	return dateMillis(raw)
}

func dateMillis(raw string) float64 {
	t, ok := domain.ParseDate(raw)
	if !ok {
		return farFuture
	}
	return float64(t.UnixMilli())
}

// lambingRank orders by the highest multiplicity in the animal's history:
// triplets, then twins, then singles, then no history.
func (srt Sorter) lambingRank(s domain.Sheep) float64 {
	sum := srt.Summarize(s)
	switch {
	case sum.Triplets > 0:
		return 3
	case sum.Twins > 0:
		return 2
	case sum.Singles > 0:
		return 1
	}
	return 0
}

// daysUntilDue clamps at zero: overdue animals sort together at the top
// of an ascending view rather than by how overdue they are.
func (srt Sorter) daysUntilDue(s domain.Sheep) float64 {
	t, ok := domain.ParseDate(s.ExpectedDueDate)
	if !ok {
		return farFuture
	}
	days := t.Sub(srt.Now).Hours() / 24
	d := int(days)
	if days > float64(d) {
		d++ // ceiling
	}
	if d < 0 {
		d = 0
	}
	return float64(d)
}

func (srt Sorter) daysPostLambing(s domain.Sheep) float64 {
	t, ok := domain.ParseDate(srt.Summarize(s).LastDate)
	if !ok {
		return farFuture
	}
	return float64(int(srt.Now.Sub(t).Hours() / 24))
}
