package lineage

import (
	"testing"

	"flockcore/pkg/domain"
)

func testIndex(records []domain.Sheep) *Index {
	return NewIndex(records, DefaultConfig())
}

func TestResolvePhases(t *testing.T) {
	records := []domain.Sheep{
		{ID: "sheep-1", Name: "Big Bertha"},
		{ID: "sheep-2", Name: "bertha"},
		{ID: "sheep-3", Name: "Ramsey"},
	}
	idx := testIndex(records)

	tests := []struct {
		ref    string
		wantID string
		wantOK bool
	}{
		{"sheep-3", "sheep-3", true},
		{"BERTHA", "sheep-2", true},      // exact name beats substring of sheep-1
		{"Big Bertha", "sheep-1", true},
		{"bert", "sheep-1", true},        // substring, first in record order
		{"Ramsey the Great", "sheep-3", true}, // containment in either direction
		{"", "", false},
		{"nobody", "", false},
	}
	for _, tc := range tests {
		got, ok := idx.Resolve(tc.ref)
		if ok != tc.wantOK {
			t.Fatalf("resolve %q: ok=%v, want %v", tc.ref, ok, tc.wantOK)
		}
		if ok && got.ID != tc.wantID {
			t.Fatalf("resolve %q: id=%q, want %q", tc.ref, got.ID, tc.wantID)
		}
	}
}

func TestResolveSubstringDisabled(t *testing.T) {
	idx := NewIndex([]domain.Sheep{{ID: "sheep-1", Name: "Big Bertha"}}, Config{})
	if _, ok := idx.Resolve("bert"); ok {
		t.Fatal("substring resolution should be off")
	}
	if _, ok := idx.Resolve("big bertha"); !ok {
		t.Fatal("exact name resolution should still work")
	}
}

func TestProgeny(t *testing.T) {
	records := []domain.Sheep{
		{ID: "ewe-1", Name: "Mama", Sex: domain.SexEwe},
		{ID: "ram-1", Name: "Papa", Sex: domain.SexRam},
		{ID: "lamb-1", Dam: "Mama", Sire: "Papa"},
		{ID: "lamb-2", Dam: "ewe-1"},
		{ID: "lamb-3", Dam: "Other"},
	}
	idx := testIndex(records)

	kids := idx.Progeny(records[0])
	if len(kids) != 2 {
		t.Fatalf("dam progeny = %d, want 2", len(kids))
	}
	kids = idx.Progeny(records[1])
	if len(kids) != 1 || kids[0].ID != "lamb-1" {
		t.Fatalf("sire progeny = %+v", kids)
	}
}

func TestInferLambingsGroupsByBirthDate(t *testing.T) {
	records := []domain.Sheep{
		{ID: "ewe-1", Name: "Mama", Sex: domain.SexEwe},
		{ID: "lamb-1", Name: "Twin A", Dam: "Mama", Sire: "Rambo", BirthDate: "2024-03-10"},
		{ID: "lamb-2", Name: "Twin B", Dam: "Mama", BirthDate: "2024-03-10"},
		{ID: "lamb-3", Name: "Single", Dam: "Mama", BirthDate: "2023-02-01"},
		{ID: "lamb-4", Name: "Mystery", Dam: "Mama"},
		{ID: "lamb-5", Name: "Mystery2", Dam: "Mama"},
	}
	idx := testIndex(records)

	events := idx.InferLambings(records[0])
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (two dated, one undated)", len(events))
	}
	// Dated events newest first.
	if events[0].Date != "2024-03-10" || int(events[0].Count) != 2 {
		t.Fatalf("event 0 = %+v", events[0])
	}
	if events[0].Sire != "Rambo" {
		t.Fatalf("event 0 sire = %q, want Rambo", events[0].Sire)
	}
	// Children are stored by id, name only when the id is missing.
	if len(events[0].Children) != 2 || events[0].Children[0] != "lamb-1" || events[0].Children[1] != "lamb-2" {
		t.Fatalf("event 0 children = %v", events[0].Children)
	}
	if events[1].Date != "2023-02-01" || int(events[1].Count) != 1 {
		t.Fatalf("event 1 = %+v", events[1])
	}
	// All undated children share one bucket, sorted last.
	if events[2].Date != "" || int(events[2].Count) != 2 {
		t.Fatalf("undated bucket = %+v", events[2])
	}
}

func TestApplyInferredNeverOverwrites(t *testing.T) {
	records := []domain.Sheep{
		{ID: "ewe-1", Name: "Mama", Sex: domain.SexEwe, Lambings: []domain.LambingEvent{{Date: "2022-01-01", Count: 1}}},
		{ID: "lamb-1", Dam: "Mama", BirthDate: "2024-03-10"},
	}
	idx := testIndex(records)

	got, changed := idx.ApplyInferred(records[0])
	if changed {
		t.Fatal("recorded lambings must not be replaced")
	}
	if len(got.Lambings) != 1 || got.Lambings[0].Date != "2022-01-01" {
		t.Fatalf("lambings = %+v", got.Lambings)
	}

	empty := domain.Sheep{ID: "ewe-2", Name: "Fresh", Sex: domain.SexEwe}
	records2 := []domain.Sheep{
		empty,
		{ID: "lamb-2", Dam: "Fresh", BirthDate: "2024-03-10"},
	}
	idx2 := testIndex(records2)
	got, changed = idx2.ApplyInferred(empty)
	if !changed || len(got.Lambings) != 1 {
		t.Fatalf("changed=%v lambings=%+v", changed, got.Lambings)
	}

	// Inference is idempotent: applying again changes nothing.
	if _, changed = idx2.ApplyInferred(got); changed {
		t.Fatal("second apply should be a no-op")
	}
}

func TestApplyInferredOnlyEwes(t *testing.T) {
	// A non-ewe listed as dam still never gets lambings persisted.
	for _, sex := range []domain.Sex{domain.SexRam, domain.SexUnknown, ""} {
		parent := domain.Sheep{ID: "p-1", Name: "Pat", Sex: sex}
		idx := testIndex([]domain.Sheep{
			parent,
			{ID: "lamb-1", Dam: "Pat", BirthDate: "2024-03-10"},
		})
		if _, changed := idx.ApplyInferred(parent); changed {
			t.Fatalf("sex %q: inference persisted for non-ewe", sex)
		}
	}
}

func TestLambingSummary(t *testing.T) {
	s := domain.Sheep{
		ID: "ewe-1",
		Lambings: []domain.LambingEvent{
			{Date: "2023-03-01", Count: 1},
			{Date: "2024-03-15", Count: 2},
			{Date: "junk", Count: 3},
		},
	}
	idx := testIndex([]domain.Sheep{s})

	sum := idx.LambingSummary(s)
	if sum.Singles != 1 || sum.Twins != 1 || sum.Triplets != 1 {
		t.Fatalf("classes = %+v", sum)
	}
	if sum.Events() != 3 {
		t.Fatalf("events = %d, want 3", sum.Events())
	}
	if sum.LastDate != "2024-03-15" || sum.LastCount != 2 {
		t.Fatalf("last = %q/%d, want newest dated event", sum.LastDate, sum.LastCount)
	}
}

func TestLambingSummaryInferredSkipsUndated(t *testing.T) {
	records := []domain.Sheep{
		{ID: "ewe-1", Name: "Mama"},
		{ID: "lamb-1", Dam: "Mama", BirthDate: "2024-03-10"},
		{ID: "lamb-2", Dam: "Mama", BirthDate: "2024-03-10"},
		{ID: "lamb-3", Dam: "Mama"}, // no birth date, excluded from summary
	}
	idx := testIndex(records)

	sum := idx.LambingSummary(records[0])
	if sum.Twins != 1 || sum.Singles != 0 || sum.Triplets != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.LastDate != "2024-03-10" {
		t.Fatalf("lastDate = %q", sum.LastDate)
	}
}

func TestLambingSummaryLegacyFields(t *testing.T) {
	tests := []struct {
		count    int
		wantS    int
		wantT    int
		wantTrip int
	}{
		{2, 0, 1, 0},
		{5, 0, 0, 1},
		{1, 1, 0, 0},
	}
	for _, tc := range tests {
		s := domain.Sheep{ID: "ewe-1", LastLambCount: domain.FlexInt(tc.count), LastLambingDate: "2024-01-05"}
		idx := testIndex([]domain.Sheep{s})
		sum := idx.LambingSummary(s)
		if sum.Singles != tc.wantS || sum.Twins != tc.wantT || sum.Triplets != tc.wantTrip {
			t.Fatalf("count %d: summary = %+v", tc.count, sum)
		}
		if sum.LastDate != "2024-01-05" {
			t.Fatalf("count %d: lastDate = %q", tc.count, sum.LastDate)
		}
	}

	// Zero count means no legacy event at all.
	s := domain.Sheep{ID: "ewe-2", LastLambingDate: "2024-01-05"}
	idx := testIndex([]domain.Sheep{s})
	if sum := idx.LambingSummary(s); sum.Events() != 0 || sum.LastDate != "" {
		t.Fatalf("zero-count summary = %+v", sum)
	}
}

func TestBreedingHistoryEwe(t *testing.T) {
	ewe := domain.Sheep{
		ID: "ewe-1", Name: "Mama", Sex: domain.SexEwe,
		BredDate:         "2024-10-01",
		LastBreedingSire: "Rambo",
		Breedings: []domain.BreedingRecord{
			{Date: "2023-10-01", Sire: "Rambo"},
		},
	}
	ram := domain.Sheep{ID: "ram-1", Name: "Rambo", Sex: domain.SexRam}
	idx := testIndex([]domain.Sheep{ewe, ram})

	rows := idx.BreedingHistory(ewe)
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want recorded plus legacy", rows)
	}
	if rows[0].Date != "2024-10-01" || rows[0].Source != SourceLegacyField {
		t.Fatalf("newest row = %+v", rows[0])
	}
	if rows[0].Partner != "Rambo" {
		t.Fatalf("partner = %q", rows[0].Partner)
	}

	// Legacy field matching the trailing recorded entry is suppressed.
	ewe.BredDate = "2023-10-01"
	rows = idx.BreedingHistory(ewe)
	if len(rows) != 1 {
		t.Fatalf("dup legacy row not suppressed: %+v", rows)
	}
}

func TestBreedingHistoryRamScansFlock(t *testing.T) {
	ram := domain.Sheep{ID: "ram-1", Name: "Rambo", Sex: domain.SexRam}
	records := []domain.Sheep{
		ram,
		{
			ID: "ewe-1", Name: "Mama",
			Breedings: []domain.BreedingRecord{{Date: "2024-10-01", Sire: "Rambo"}},
		},
		{
			ID: "ewe-2", Name: "Dolly",
			Lambings: []domain.LambingEvent{{Date: "2024-03-01", Count: 2, Sire: "ram-1"}},
		},
		{
			ID: "ewe-3", Name: "Uninvolved",
			Breedings: []domain.BreedingRecord{{Date: "2024-05-01", Sire: "Other Ram"}},
		},
	}
	idx := testIndex(records)

	rows := idx.BreedingHistory(ram)
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].Partner != "Mama" || rows[0].Source != SourceRecorded {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Partner != "Dolly" || rows[1].Source != SourceLambingSire {
		t.Fatalf("row 1 = %+v", rows[1])
	}
}

func TestBreedingHistoryRamFlatFields(t *testing.T) {
	ram := domain.Sheep{ID: "ram-1", Name: "Rambo", Sex: domain.SexRam}
	records := []domain.Sheep{
		ram,
		// Ewes bred before the breedings list existed carry only the
		// flat cache fields.
		{ID: "ewe-1", Name: "Mama", Sex: domain.SexEwe, LastBreedingSire: "ram-1", LastBredDate: "2024-10-01"},
		{ID: "ewe-2", Name: "Dolly", Sex: domain.SexEwe, Sire: "ram-1", BredDate: "2024-09-15"},
		// A recorded breeding already covers the cache fields.
		{
			ID: "ewe-3", Name: "Tilly", Sex: domain.SexEwe,
			LastBreedingSire: "ram-1", LastBredDate: "2024-08-01",
			Breedings: []domain.BreedingRecord{{Date: "2024-08-01", Sire: "ram-1"}},
		},
	}
	idx := testIndex(records)

	rows := idx.BreedingHistory(ram)
	if len(rows) != 3 {
		t.Fatalf("rows = %+v, want 3", rows)
	}
	if rows[0].Partner != "Mama" || rows[0].Source != SourceLegacyField || rows[0].Date != "2024-10-01" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Partner != "Dolly" || rows[1].Source != SourceLegacyField {
		t.Fatalf("row 1 = %+v", rows[1])
	}
	if rows[2].Partner != "Tilly" || rows[2].Source != SourceRecorded {
		t.Fatalf("row 2 = %+v", rows[2])
	}
}

func TestBuildPedigree(t *testing.T) {
	records := []domain.Sheep{
		{ID: "lamb-1", Name: "Kid", Sire: "Papa", Dam: "Mama"},
		{ID: "ram-1", Name: "Papa", Sire: "Grandpa"},
		{ID: "ewe-1", Name: "Mama"},
		{ID: "ram-0", Name: "Grandpa"},
	}
	idx := testIndex(records)

	p := idx.BuildPedigree(records[0], 2)
	if len(p.Generations) != 2 {
		t.Fatalf("generations = %d", len(p.Generations))
	}
	g0 := p.Generations[0]
	if len(g0) != 2 || !g0[0].Known || g0[0].Label != "Papa" || !g0[1].Known || g0[1].Label != "Mama" {
		t.Fatalf("generation 0 = %+v", g0)
	}
	g1 := p.Generations[1]
	if len(g1) != 4 {
		t.Fatalf("generation 1 = %+v", g1)
	}
	if !g1[0].Known || g1[0].Label != "Grandpa" {
		t.Fatalf("paternal grandsire = %+v", g1[0])
	}
	for _, a := range g1[1:] {
		if a.Known {
			t.Fatalf("unexpected known ancestor %+v", a)
		}
	}
}

func TestBuildPedigreeResolvesCyclicAncestors(t *testing.T) {
	records := []domain.Sheep{
		{ID: "a", Name: "A", Sire: "B"},
		{ID: "b", Name: "B", Sire: "A"},
	}
	idx := testIndex(records)

	// Depth alone bounds the walk: an animal appearing among its own
	// ancestors resolves at every level.
	p := idx.BuildPedigree(records[0], 4)
	if len(p.Generations) != 4 {
		t.Fatalf("generations = %d", len(p.Generations))
	}
	want := []string{"B", "A", "B", "A"}
	for g, label := range want {
		sire := p.Generations[g][0]
		if !sire.Known || sire.Label != label {
			t.Fatalf("generation %d sire slot = %+v, want known %q", g, sire, label)
		}
	}
}
