package report

import (
	"fmt"

	"flockcore/pkg/domain"
)

// Event is one calendar entry derived from a record: a breeding date, an
// expected due date, or a recorded lambing. Date is ISO YYYY-MM-DD.
type Event struct {
	Date string
	Type string
	Name string
	ID   string
	Note string
}

// Calendar event types.
const (
	EventBreeding        = "Breeding"
	EventExpectedDue     = "Expected Due"
	EventInferredDue     = "Expected Due (inferred)"
	EventRecordedLambing = "Recorded Lambing"
)

// CalendarEvents flattens the whole collection into calendar entries. Every
// parseable due-date candidate becomes its own event; when none exist the
// bred date projects an inferred due event. Unlike the tabular reports this
// covers inactive animals too, so exported calendars keep their history.
func CalendarEvents(records []domain.Sheep, gestationDays int) []Event {
	var out []Event
	for _, s := range records {
		name := s.Label()

		if bd, ok := domain.ParseDate(s.BredDate); ok {
			out = append(out, Event{
				Date: domain.ISODate(bd),
				Type: EventBreeding,
				Name: name,
				ID:   s.ID,
				Note: "Sire:" + s.Sire,
			})
		}

		dueFound := false
		for _, cand := range s.DueDateCandidates() {
			if t, ok := domain.ParseDate(cand); ok {
				dueFound = true
				out = append(out, Event{
					Date: domain.ISODate(t),
					Type: EventExpectedDue,
					Name: name,
					ID:   s.ID,
				})
			}
		}
		if !dueFound && gestationDays > 0 {
			if bd, ok := domain.ParseDate(s.BredDate); ok {
				out = append(out, Event{
					Date: domain.ISODate(bd.AddDate(0, 0, gestationDays)),
					Type: EventInferredDue,
					Name: name,
					ID:   s.ID,
				})
			}
		}

		for _, ev := range s.Lambings {
			if t, ok := domain.ParseDate(ev.Date); ok {
				note := "count:"
				if int(ev.Count) != 0 {
					note = fmt.Sprintf("count:%d", int(ev.Count))
				}
				out = append(out, Event{
					Date: domain.ISODate(t),
					Type: EventRecordedLambing,
					Name: name,
					ID:   s.ID,
					Note: note,
				})
			}
		}
	}
	return out
}
