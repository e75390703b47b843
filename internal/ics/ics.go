// Package ics renders calendar event feeds as iCalendar documents.
package ics

import (
	"fmt"
	"strings"
	"time"

	"flockcore/internal/report"
)

// DefaultCalendarName labels exported calendars when no name is given.
const DefaultCalendarName = "Sheep Lambing Calendar"

const prodID = "-//SheepManagement//EN"

// Encode renders events as an iCalendar document with CRLF line endings.
// Each event is a one-day all-day VEVENT; events without a parseable date
// are skipped. The UID embeds the record id, date, and event index so
// repeated exports stay stable for calendar clients.
func Encode(events []report.Event, calendarName string, now time.Time) string {
	if calendarName == "" {
		calendarName = DefaultCalendarName
	}
	var b strings.Builder
	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("VERSION:2.0")
	writeLine("PRODID:" + prodID)
	writeLine("CALSCALE:GREGORIAN")
	writeLine("X-WR-CALNAME:" + escapeText(calendarName))

	stamp := now.UTC().Format("20060102T150405Z")
	for idx, ev := range events {
		if len(ev.Date) != 10 {
			continue
		}
		dt := strings.ReplaceAll(ev.Date, "-", "")
		writeLine("BEGIN:VEVENT")
		writeLine(fmt.Sprintf("UID:sheep-%s-%s-%d@sheep-management", ev.ID, dt, idx))
		writeLine("DTSTAMP:" + stamp)
		writeLine("DTSTART;VALUE=DATE:" + dt)
		writeLine("DTEND;VALUE=DATE:" + dt)
		writeLine("SUMMARY:" + escapeText(ev.Type+": "+ev.Name))
		desc := "ID:" + ev.ID
		if ev.Note != "" {
			desc += " - " + ev.Note
		}
		writeLine("DESCRIPTION:" + escapeText(desc))
		writeLine("END:VEVENT")
	}
	writeLine("END:VCALENDAR")
	return b.String()
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
