package lineage

import (
	"sort"
	"time"

	"flockcore/pkg/domain"
)

// Breeding-history row sources.
const (
	SourceRecorded    = "recorded"
	SourceLegacyField = "bred date"
	SourceLambingSire = "lambing (sire)"
)

// BreedingRow is one event in an animal's assembled breeding history.
// Partner is the other animal's display label, or the raw reference when
// it does not resolve.
type BreedingRow struct {
	Date    string
	Partner string
	Source  string
	Note    string
}

// BreedingHistory assembles the breeding timeline for one animal, newest
// first. For a ewe it combines her recorded breedings with a legacy
// bred-date field when that is not already covered; for a ram it scans the
// whole collection for breedings and lambings naming him as sire. Rows
// with unparseable dates sort as oldest.
func (x *Index) BreedingHistory(s domain.Sheep) []BreedingRow {
	var rows []BreedingRow
	if s.Sex == domain.SexRam {
		rows = x.ramHistory(s)
	} else {
		rows = x.eweHistory(s)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rowTime(rows[i]).After(rowTime(rows[j]))
	})
	return rows
}

func rowTime(r BreedingRow) time.Time {
	if t, ok := domain.ParseDate(r.Date); ok {
		return t
	}
	return time.Time{}
}

func (x *Index) eweHistory(s domain.Sheep) []BreedingRow {
	rows := make([]BreedingRow, 0, len(s.Breedings)+1)
	for _, b := range s.Breedings {
		rows = append(rows, BreedingRow{
			Date:    b.Date,
			Partner: x.partnerLabel(b.Sire),
			Source:  SourceRecorded,
			Note:    b.Note,
		})
	}

	// The flat bredDate/_lastBredDate fields predate the breedings list.
	// Surface them unless the newest recorded entry already covers the
	// same date and sire.
	date := s.BredDate
	if date == "" {
		date = s.LastBredDate
	}
	if date != "" {
		sire := s.LastBreedingSire
		dup := false
		if n := len(s.Breedings); n > 0 {
			last := s.Breedings[n-1]
			dup = last.Date == date && (sire == "" || domain.EqualFold(last.Sire, sire))
		}
		if !dup {
			rows = append(rows, BreedingRow{
				Date:    date,
				Partner: x.partnerLabel(sire),
				Source:  SourceLegacyField,
			})
		}
	}
	return rows
}

func (x *Index) ramHistory(ram domain.Sheep) []BreedingRow {
	var rows []BreedingRow
	for _, ewe := range x.records {
		if ewe.ID == ram.ID {
			continue
		}
		covered := false
		for _, b := range ewe.Breedings {
			if x.SameAnimal(b.Sire, ram) {
				covered = true
				rows = append(rows, BreedingRow{
					Date:    b.Date,
					Partner: ewe.Label(),
					Source:  SourceRecorded,
					Note:    b.Note,
				})
			}
		}
		// A bred ewe may carry only the flat sire/bred-date cache fields,
		// with no breedings list at all.
		if !covered && domain.NormalizeSex(string(ewe.Sex)) == domain.SexEwe &&
			(x.SameAnimal(ewe.LastBreedingSire, ram) || x.SameAnimal(ewe.Sire, ram)) {
			date := ewe.LastBredDate
			if date == "" {
				date = ewe.BredDate
			}
			rows = append(rows, BreedingRow{
				Date:    date,
				Partner: ewe.Label(),
				Source:  SourceLegacyField,
			})
		}
		for _, ev := range x.EffectiveLambings(ewe) {
			if ev.Sire != "" && x.SameAnimal(ev.Sire, ram) {
				rows = append(rows, BreedingRow{
					Date:    ev.Date,
					Partner: ewe.Label(),
					Source:  SourceLambingSire,
				})
			}
		}
	}
	return rows
}

func (x *Index) partnerLabel(ref string) string {
	if ref == "" {
		return ""
	}
	if p, ok := x.ResolveExact(ref); ok {
		return p.Label()
	}
	return ref
}
