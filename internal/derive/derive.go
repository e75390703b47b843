// Package derive computes per-animal display values: age text, frozen
// ages, due dates, nursing state, and weight gain.
package derive

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"flockcore/pkg/domain"
)

// AgeUnavailable is shown when no stored field yields an age.
const AgeUnavailable = "N/A"

// AgeText renders the age phrase for a birth date at the given instant.
// The day of month only decides whether the current month has completed;
// the phrase itself carries years and months.
func AgeText(birthDate string, now time.Time) string {
	bd, ok := domain.ParseDate(birthDate)
	if !ok {
		return AgeUnavailable
	}

	years := now.Year() - bd.Year()
	months := int(now.Month()) - int(bd.Month())
	days := now.Day() - bd.Day()
	if days < 0 {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}

	switch {
	case years > 1:
		if months != 0 {
			return fmt.Sprintf("%d years %d months", years, months)
		}
		return fmt.Sprintf("%d years", years)
	case years == 1:
		if months != 0 {
			return fmt.Sprintf("1 year %d months", months)
		}
		return "1 year"
	case months > 0:
		return fmt.Sprintf("%d months", months)
	}
	return "Less than 1 month"
}

// DisplayAge resolves what to show for an animal's age: the frozen
// snapshot while the animal is in a terminal status, a live computation
// from the birth date, then the stored free-text age field.
func DisplayAge(s domain.Sheep, now time.Time) string {
	if s.FrozenAge != "" {
		switch domain.NormalizeStatus(s.Status) {
		case domain.StatusArchived, domain.StatusCulled, domain.StatusSold:
			return s.FrozenAge
		}
	}
	if s.BirthDate != "" {
		return AgeText(s.BirthDate, now)
	}
	return s.Age
}

// ApplyStatus sets a new status, snapshotting the current computed age
// when the animal leaves the flock so its displayed age stops advancing.
// Returning to active drops the snapshot and resumes live aging.
func ApplyStatus(s domain.Sheep, status string, now time.Time) domain.Sheep {
	s.Status = status
	switch domain.NormalizeStatus(status) {
	case domain.StatusArchived, domain.StatusCulled, domain.StatusSold:
		frozen := ""
		if s.BirthDate != "" {
			frozen = AgeText(s.BirthDate, now)
		}
		if frozen == "" || frozen == AgeUnavailable {
			frozen = s.Age
		}
		s.FrozenAge = frozen
	case domain.StatusActive:
		s.FrozenAge = ""
	}
	return s
}

// DueDate resolves an animal's expected due date: the first parseable
// candidate among the due-date alias fields, else the bred date projected
// by the gestation length. The bool is false when neither yields a date.
func DueDate(s domain.Sheep, gestationDays int) (time.Time, bool) {
	for _, cand := range s.DueDateCandidates() {
		if t, ok := domain.ParseDate(cand); ok {
			return t, true
		}
	}
	return dueFromBredDate(s, gestationDays)
}

// EarliestDueDate resolves the soonest parseable candidate instead of the
// first, for calendar views where every upcoming date matters.
func EarliestDueDate(s domain.Sheep, gestationDays int) (time.Time, bool) {
	var best time.Time
	found := false
	for _, cand := range s.DueDateCandidates() {
		if t, ok := domain.ParseDate(cand); ok {
			if !found || t.Before(best) {
				best, found = t, true
			}
		}
	}
	if found {
		return best, true
	}
	return dueFromBredDate(s, gestationDays)
}

// AllDueDates returns every distinct parseable due-date candidate, sorted,
// falling back to the projected bred date when no explicit value parses.
func AllDueDates(s domain.Sheep, gestationDays int) []time.Time {
	var out []time.Time
	seen := map[string]bool{}
	for _, cand := range s.DueDateCandidates() {
		if t, ok := domain.ParseDate(cand); ok {
			key := domain.ISODate(t)
			if !seen[key] {
				seen[key] = true
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		if t, ok := dueFromBredDate(s, gestationDays); ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func dueFromBredDate(s domain.Sheep, gestationDays int) (time.Time, bool) {
	if s.BredDate == "" || gestationDays <= 0 {
		return time.Time{}, false
	}
	bd, ok := domain.ParseDate(s.BredDate)
	if !ok {
		return time.Time{}, false
	}
	return bd.AddDate(0, 0, gestationDays), true
}

// IsNursing reports whether the last lambing date falls within the nursing
// window. Future-dated lambings do not count.
func IsNursing(lastLambing string, windowDays int, now time.Time) bool {
	t, ok := domain.ParseDate(lastLambing)
	if !ok {
		return false
	}
	days := int(math.Floor(now.Sub(t).Hours() / 24))
	return days >= 0 && days <= windowDays
}

// WeightGain summarizes an animal's weight history between its first and
// latest dated samples.
type WeightGain struct {
	InitialDate   string
	InitialWeight string
	LatestDate    string
	LatestWeight  string
	Days          int
	Gain          string // total gain, 2 decimal places; empty when a weight is non-numeric
	GainPerDay    string // 3 decimal places; empty when Days is zero
}

// ComputeWeightGain derives the gain summary. The bool is false when the
// animal has no dated weight samples.
func ComputeWeightGain(s domain.Sheep) (WeightGain, bool) {
	type sample struct {
		when   time.Time
		raw    string
		weight float64
		num    bool
	}
	var parsed []sample
	for _, w := range s.Weights {
		if w.Date == "" {
			continue
		}
		t, ok := domain.ParseDate(w.Date)
		if !ok {
			continue
		}
		sm := sample{when: t, raw: w.Date}
		if v, err := strconv.ParseFloat(strings.TrimSpace(w.Weight), 64); err == nil {
			sm.weight, sm.num = v, true
		}
		parsed = append(parsed, sm)
	}
	if len(parsed) == 0 {
		return WeightGain{}, false
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].when.Before(parsed[j].when) })

	first, last := parsed[0], parsed[len(parsed)-1]
	days := int(math.Round(last.when.Sub(first.when).Hours() / 24))
	if days < 0 {
		days = 0
	}
	out := WeightGain{
		InitialDate: first.raw,
		LatestDate:  last.raw,
		Days:        days,
	}
	if first.num {
		out.InitialWeight = trimFloat(first.weight)
	}
	if last.num {
		out.LatestWeight = trimFloat(last.weight)
	}
	if first.num && last.num {
		gain := last.weight - first.weight
		out.Gain = trimFloat(math.Round(gain*100) / 100)
		if days > 0 {
			out.GainPerDay = trimFloat(math.Round(gain/float64(days)*1000) / 1000)
		}
	}
	return out, true
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
