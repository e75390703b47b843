package lineage

import (
	"sort"
	"time"

	"flockcore/pkg/domain"
)

// InferLambings reconstructs a dam's lambing events from her progeny's
// birth dates. Children sharing a birth date form one event; children with
// no usable birth date share a single undated event. Events are returned
// newest first, the undated event last.
func (x *Index) InferLambings(dam domain.Sheep) []domain.LambingEvent {
	type group struct {
		date     string
		when     time.Time
		dated    bool
		children []domain.Sheep
	}
	var groups []*group
	byDate := map[string]*group{}
	var undated *group

	for _, child := range x.records {
		if child.ID == dam.ID || !x.SameAnimal(child.Dam, dam) {
			continue
		}
		if t, ok := domain.ParseDate(child.BirthDate); ok {
			key := domain.ISODate(t)
			g, exists := byDate[key]
			if !exists {
				g = &group{date: key, when: t, dated: true}
				byDate[key] = g
				groups = append(groups, g)
			}
			g.children = append(g.children, child)
			continue
		}
		if undated == nil {
			undated = &group{}
			groups = append(groups, undated)
		}
		undated.children = append(undated.children, child)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].dated != groups[j].dated {
			return groups[i].dated
		}
		return groups[i].when.After(groups[j].when)
	})

	out := make([]domain.LambingEvent, 0, len(groups))
	for _, g := range groups {
		ev := domain.LambingEvent{
			Date:  g.date,
			Count: domain.FlexInt(len(g.children)),
		}
		for _, c := range g.children {
			ref := c.ID
			if ref == "" {
				ref = c.Name
			}
			ev.Children = append(ev.Children, ref)
			if ev.Sire == "" && c.Sire != "" {
				ev.Sire = c.Sire
			}
		}
		out = append(out, ev)
	}
	return out
}

// EffectiveLambings returns the animal's recorded lambings, falling back
// to inference from progeny when none are recorded.
func (x *Index) EffectiveLambings(s domain.Sheep) []domain.LambingEvent {
	if len(s.Lambings) > 0 {
		return s.Lambings
	}
	return x.InferLambings(s)
}

// ApplyInferred fills a ewe's empty lambings list from inference. Only
// ewes are inferred; recorded history is authoritative and never
// overwritten. The bool reports whether the record changed and needs
// saving.
func (x *Index) ApplyInferred(s domain.Sheep) (domain.Sheep, bool) {
	if domain.NormalizeSex(string(s.Sex)) != domain.SexEwe || len(s.Lambings) > 0 {
		return s, false
	}
	inferred := x.InferLambings(s)
	if len(inferred) == 0 {
		return s, false
	}
	s.Lambings = inferred
	return s, true
}

// Summary aggregates an animal's lambing history into per-multiplicity
// event counts: an event with one (or zero) lambs counts as a single, two
// as twins, three or more as triplets. LastDate is the normalized date of
// the most recent dated event.
type Summary struct {
	Singles   int
	Twins     int
	Triplets  int
	LastDate  string
	LastCount int // lamb count of the most recent dated event
}

// Events reports how many lambing events the summary covers.
func (sum Summary) Events() int {
	return sum.Singles + sum.Twins + sum.Triplets
}

func (sum *Summary) classify(count int) {
	switch {
	case count <= 1:
		sum.Singles++
	case count == 2:
		sum.Twins++
	default:
		sum.Triplets++
	}
}

// LambingSummary aggregates the animal's lambing history. Recorded events
// take priority; with none recorded, events are inferred from progeny
// birth dates (undated progeny are excluded here, unlike InferLambings);
// with no progeny either, the legacy single-field schema is consulted when
// it holds a non-zero count.
func (x *Index) LambingSummary(s domain.Sheep) Summary {
	var sum Summary

	if len(s.Lambings) > 0 {
		var lastWhen time.Time
		for _, ev := range s.Lambings {
			sum.classify(int(ev.Count))
			if t, ok := domain.ParseDate(ev.Date); ok {
				if sum.LastDate == "" || t.After(lastWhen) {
					lastWhen = t
					sum.LastDate = domain.ISODate(t)
					sum.LastCount = int(ev.Count)
				}
			}
		}
		return sum
	}

	inferred := x.InferLambings(s)
	if len(inferred) > 0 {
		var lastWhen time.Time
		for _, ev := range inferred {
			t, ok := domain.ParseDate(ev.Date)
			if !ok {
				continue
			}
			sum.classify(int(ev.Count))
			if sum.LastDate == "" || t.After(lastWhen) {
				lastWhen = t
				sum.LastDate = domain.ISODate(t)
				sum.LastCount = int(ev.Count)
			}
		}
		return sum
	}

	if n := int(s.LastLambCount); n != 0 {
		sum.classify(n)
		sum.LastCount = n
		if s.LastLambingDate != "" {
			sum.LastDate = s.LastLambingDate
		}
	}
	return sum
}
