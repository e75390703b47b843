package classify

import (
	"sort"
	"testing"
	"time"

	"flockcore/internal/lineage"
	"flockcore/pkg/domain"
)

var testNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestIsActiveStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"", true},
		{"active", true},
		{"to-be-culled", true},
		{"died", true},
		{"culled", false},
		{"  CULLED  ", false},
		{"sold", false},
		{"archived", false},
	}
	for _, tc := range tests {
		if got := IsActiveStatus(tc.status); got != tc.want {
			t.Fatalf("IsActiveStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestIsLambUsesWholeMonths(t *testing.T) {
	tests := []struct {
		birth string
		want  bool
	}{
		{"2025-03-01", true},  // 3 whole months
		{"2025-02-20", false}, // 4 whole months, day-of-month ignored
		{"2025-06-01", true},
		{"2024-06-15", false},
		{"", false},
		{"nonsense", false},
	}
	for _, tc := range tests {
		s := domain.Sheep{BirthDate: tc.birth}
		if got := IsLamb(s, testNow); got != tc.want {
			t.Fatalf("IsLamb(%q) = %v, want %v", tc.birth, got, tc.want)
		}
	}
}

func TestMatchesTabPartition(t *testing.T) {
	records := []domain.Sheep{
		{ID: "1", Sex: domain.SexEwe, BirthDate: "2022-01-01"},
		{ID: "2", Sex: domain.SexRam, BirthDate: "2021-01-01"},
		{ID: "3", Sex: domain.SexEwe, BirthDate: "2025-05-01"}, // lamb
		{ID: "4", Sex: domain.SexEwe, Status: "culled", BirthDate: "2020-01-01"},
		{ID: "5", Sex: domain.SexRam, Status: "to be culled", BirthDate: "2020-01-01"},
		{ID: "6", Sex: domain.SexEwe, Status: "sold"},
	}

	want := map[string][]string{
		TabActiveEwes:   {"1"},
		TabActiveRams:   {"2", "5"},
		TabCurrentLambs: {"3"},
		TabCulled:       {"4"},
		TabToBeCulled:   {"5"},
		TabSold:         {"6"},
		TabArchived:     nil,
		TabAll:          {"1", "2", "3", "5"},
	}
	for tab, ids := range want {
		var got []string
		for _, s := range records {
			if MatchesTab(s, tab, testNow) {
				got = append(got, s.ID)
			}
		}
		if len(got) != len(ids) {
			t.Fatalf("tab %s: got %v, want %v", tab, got, ids)
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("tab %s: got %v, want %v", tab, got, ids)
			}
		}
	}

	// Active ewes, active rams, and current lambs never overlap.
	for _, s := range records {
		n := 0
		for _, tab := range []string{TabActiveEwes, TabActiveRams, TabCurrentLambs} {
			if MatchesTab(s, tab, testNow) {
				n++
			}
		}
		if n > 1 {
			t.Fatalf("record %s matches %d active tabs", s.ID, n)
		}
	}
}

func testSorter(records []domain.Sheep) Sorter {
	idx := lineage.NewIndex(records, lineage.DefaultConfig())
	return Sorter{Now: testNow, Summarize: idx.LambingSummary}
}

func sortBy(t *testing.T, records []domain.Sheep, state SortState) []string {
	t.Helper()
	srt := testSorter(records)
	sorted := append([]domain.Sheep(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return srt.Compare(sorted[i], sorted[j], state) < 0
	})
	ids := make([]string, len(sorted))
	for i, s := range sorted {
		ids[i] = s.ID
	}
	return ids
}

func TestCompareNameIsLocaleAware(t *testing.T) {
	records := []domain.Sheep{
		{ID: "b", Name: "Banana"},
		{ID: "a", Name: "apple"},
		{ID: "g", Name: "Ágnes"},
	}
	ids := sortBy(t, records, SortState{Field: "name", Asc: true})
	// Byte ordering would put the uppercase names first and the accented
	// name last; collation folds case and diacritics.
	if ids[0] != "g" || ids[1] != "a" || ids[2] != "b" {
		t.Fatalf("order = %v", ids)
	}
}

func TestCompareMissingDatesSortLast(t *testing.T) {
	records := []domain.Sheep{
		{ID: "none"},
		{ID: "soon", ExpectedDueDate: "2025-07-01"},
		{ID: "later", ExpectedDueDate: "2025-09-01"},
		{ID: "junk", ExpectedDueDate: "not a date"},
	}
	ids := sortBy(t, records, SortState{Field: "expectedDueDate", Asc: true})
	if ids[0] != "soon" || ids[1] != "later" {
		t.Fatalf("order = %v", ids)
	}
	// Missing and unparseable both land at the end, original order kept.
	if ids[2] != "none" || ids[3] != "junk" {
		t.Fatalf("order = %v", ids)
	}

	// Descending flips everything, including the missing values.
	ids = sortBy(t, records, SortState{Field: "expectedDueDate", Asc: false})
	if ids[len(ids)-1] != "soon" {
		t.Fatalf("desc order = %v", ids)
	}
}

func TestCompareDaysUntilClampsOverdue(t *testing.T) {
	records := []domain.Sheep{
		{ID: "overdue-far", ExpectedDueDate: "2025-05-01"},
		{ID: "overdue-near", ExpectedDueDate: "2025-06-10"},
		{ID: "upcoming", ExpectedDueDate: "2025-06-20"},
	}
	srt := testSorter(records)
	// Both overdue animals clamp to zero days and compare equal.
	if c := srt.Compare(records[0], records[1], SortState{Field: "daysUntil", Asc: true}); c != 0 {
		t.Fatalf("overdue compare = %d, want 0", c)
	}
	if c := srt.Compare(records[0], records[2], SortState{Field: "daysUntil", Asc: true}); c >= 0 {
		t.Fatalf("overdue should sort before upcoming, got %d", c)
	}
}

func TestComparePastLambingRank(t *testing.T) {
	records := []domain.Sheep{
		{ID: "none"},
		{ID: "single", Lambings: []domain.LambingEvent{{Date: "2024-01-01", Count: 1}}},
		{ID: "triplet", Lambings: []domain.LambingEvent{{Date: "2023-01-01", Count: 3}}},
		{ID: "twin", Lambings: []domain.LambingEvent{{Date: "2024-02-01", Count: 2}}},
	}
	ids := sortBy(t, records, SortState{Field: "pastLambing", Asc: false})
	if ids[0] != "triplet" || ids[1] != "twin" || ids[2] != "single" || ids[3] != "none" {
		t.Fatalf("order = %v", ids)
	}
}

func TestCompareWeightParsesLeadingNumber(t *testing.T) {
	records := []domain.Sheep{
		{ID: "heavy", Weight: "120 lbs"},
		{ID: "light", Weight: "85.5"},
		{ID: "unknown", Weight: "n/a"},
	}
	ids := sortBy(t, records, SortState{Field: "weight", Asc: true})
	if ids[0] != "unknown" || ids[1] != "light" || ids[2] != "heavy" {
		t.Fatalf("order = %v", ids)
	}
}
