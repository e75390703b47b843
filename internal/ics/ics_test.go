package ics

import (
	"strings"
	"testing"
	"time"

	"flockcore/internal/report"
)

func TestEncode(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	events := []report.Event{
		{Date: "2025-07-01", Type: "Expected Due", Name: "Daisy", ID: "sheep-1"},
		{Date: "2025-03-10", Type: "Recorded Lambing", Name: "Daisy", ID: "sheep-1", Note: "count:2"},
		{Date: "", Type: "Breeding", Name: "Skipped", ID: "sheep-2"},
	}

	out := Encode(events, "", now)

	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(out, "END:VCALENDAR\r\n") {
		t.Fatalf("envelope wrong:\n%s", out)
	}
	if strings.Contains(out, "\n") && !strings.Contains(out, "\r\n") {
		t.Fatal("missing CRLF line endings")
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("events = %d, want 2 (undated skipped)", got)
	}
	if !strings.Contains(out, "UID:sheep-sheep-1-20250701-0@sheep-management") {
		t.Fatalf("uid missing:\n%s", out)
	}
	if !strings.Contains(out, "DTSTART;VALUE=DATE:20250701") {
		t.Fatal("all-day DTSTART missing")
	}
	if !strings.Contains(out, "DTSTAMP:20250615T103000Z") {
		t.Fatal("DTSTAMP missing")
	}
	if !strings.Contains(out, "SUMMARY:Expected Due: Daisy") {
		t.Fatal("summary missing")
	}
	if !strings.Contains(out, "DESCRIPTION:ID:sheep-1 - count:2") {
		t.Fatal("description with note missing")
	}
	if !strings.Contains(out, "X-WR-CALNAME:Sheep Lambing Calendar") {
		t.Fatal("default calendar name missing")
	}
}

func TestEncodeEscapesText(t *testing.T) {
	events := []report.Event{
		{Date: "2025-07-01", Type: "Expected Due", Name: "Daisy, the 2nd; really", ID: "x"},
	}
	out := Encode(events, "", time.Now())
	if !strings.Contains(out, `SUMMARY:Expected Due: Daisy\, the 2nd\; really`) {
		t.Fatalf("escaping wrong:\n%s", out)
	}
}
